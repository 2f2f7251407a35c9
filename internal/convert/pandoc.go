// Package convert 调用 pandoc 将 Markdown 报告转换为 Word 文档
package convert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/iWorld-y/azure_radar/internal/logger"
)

// DefaultPandoc PATH 中的默认可执行文件名
const DefaultPandoc = "pandoc"

// ErrPandocNotFound 找不到 pandoc
var ErrPandocNotFound = errors.New("pandoc executable not found")

// Converter Markdown 到 docx 的转换器
type Converter struct {
	pandocPath string
	timeout    time.Duration
}

// NewConverter pandocPath 可以为空，此时使用 PATH 中的 pandoc
func NewConverter(pandocPath string, timeout time.Duration) *Converter {
	return &Converter{pandocPath: pandocPath, timeout: timeout}
}

// Resolve 解析可执行文件路径，配置的路径不可用时退回到 PATH 中的 pandoc
func (c *Converter) Resolve() (string, error) {
	if c.pandocPath != "" {
		if p, err := exec.LookPath(c.pandocPath); err == nil {
			logger.Log.Infof("使用配置的 Pandoc 路径: %s", p)
			return p, nil
		}
		logger.Log.Warnf("配置的 Pandoc 路径 '%s' 不存在或不可执行，尝试使用 PATH 中的 pandoc", c.pandocPath)
	} else {
		logger.Log.Info("未配置 Pandoc 路径，尝试使用 PATH 中的 pandoc")
	}

	p, err := exec.LookPath(DefaultPandoc)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPandocNotFound, err)
	}
	return p, nil
}

// ToDocx 执行 pandoc <md> -s -o <docx>，失败时记录 pandoc 的输出
func (c *Converter) ToDocx(ctx context.Context, mdPath, docxPath string) error {
	if mdPath == "" {
		return errors.New("markdown path is empty")
	}
	if _, err := os.Stat(mdPath); err != nil {
		return fmt.Errorf("markdown input: %w", err)
	}
	if docxPath == "" {
		return errors.New("word output path is empty")
	}

	pandoc, err := c.Resolve()
	if err != nil {
		return err
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	logger.Log.Infof("正在转换 '%s' -> '%s' (%s)...", filepath.Base(mdPath), filepath.Base(docxPath), filepath.Base(pandoc))
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, pandoc, mdPath, "-s", "-o", docxPath)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			err = fmt.Errorf("%w: %v", ctx.Err(), err)
		}
		if s := strings.TrimSpace(stderr.String()); s != "" {
			logger.Log.Warnf("Pandoc 错误输出:\n%s", s)
		}
		if s := strings.TrimSpace(stdout.String()); s != "" {
			logger.Log.Warnf("Pandoc 标准输出:\n%s", s)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return fmt.Errorf("pandoc exited with code %d: %s", exitErr.ExitCode(), strings.TrimSpace(stderr.String()))
		}
		return fmt.Errorf("run pandoc: %w", err)
	}

	logger.Log.Infof("Word 文档已生成: %s", docxPath)
	return nil
}
