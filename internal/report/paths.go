package report

import (
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/iWorld-y/azure_radar/internal/logger"
)

// Paths 一次运行的输出文件
type Paths struct {
	Dir      string
	Markdown string
	Word     string
	HTML     string
}

// FileBase 输出文件名（不含扩展名）：Azure_Env_Summary_Sub<订阅前 8 个字母数字>_<时间戳>
func FileBase(subscriptionID string, ts time.Time) string {
	var sb strings.Builder
	for _, r := range subscriptionID {
		if sb.Len() >= 8 {
			break
		}
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			sb.WriteRune(r)
		}
	}
	sub := sb.String()
	if sub == "" {
		sub = "UnknownSub"
	}
	return "Azure_Env_Summary_Sub" + sub + "_" + ts.Format("20060102_150405")
}

// PreparePaths 创建输出目录，失败时退回到当前工作目录
func PreparePaths(dir, subscriptionID string, ts time.Time) Paths {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		logger.Log.Warnf("无法创建输出目录 '%s': %v，使用当前工作目录", dir, err)
		dir = "."
	}
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}

	base := filepath.Join(dir, FileBase(subscriptionID, ts))
	return Paths{
		Dir:      dir,
		Markdown: base + ".md",
		Word:     base + ".docx",
		HTML:     base + ".html",
	}
}
