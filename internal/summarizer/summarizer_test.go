package summarizer

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/iWorld-y/azure_radar/internal/format"
	"github.com/iWorld-y/azure_radar/internal/llm"
	"github.com/iWorld-y/azure_radar/internal/logger"
	"github.com/iWorld-y/azure_radar/internal/model"
)

type step struct {
	gen *llm.Generation
	err error
}

// fakeGenerator 依次返回预设结果
type fakeGenerator struct {
	mu      sync.Mutex
	steps   []step
	prompts []string
	block   bool
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (*llm.Generation, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	idx := len(f.prompts) - 1
	f.mu.Unlock()

	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if idx >= len(f.steps) {
		idx = len(f.steps) - 1
	}
	return f.steps[idx].gen, f.steps[idx].err
}

func (f *fakeGenerator) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

func testOptions() Options {
	return Options{
		KeyName: "GEMINI_API_KEY",
		Timeout: time.Second,
		Retry:   llm.RetryPolicy{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond},
	}
}

func TestSummarizeCategory(t *testing.T) {
	ctx := context.Background()
	text := "- Name: st1, Type: storage, Details: (sku: Standard_LRS)"

	t.Run("success is trimmed", func(t *testing.T) {
		gen := &fakeGenerator{steps: []step{{gen: &llm.Generation{Text: "  Storage analysis.\n"}}}}
		got := NewSummarizer(gen, testOptions()).SummarizeCategory(ctx, "Storage", text)
		assert.Equal(t, model.Succeeded("Storage analysis."), got)
		require.Equal(t, 1, gen.calls())
		assert.Contains(t, gen.prompts[0], "for the 'Storage' category")
		assert.Contains(t, gen.prompts[0], text)
	})

	t.Run("missing key makes no call", func(t *testing.T) {
		got := NewSummarizer(nil, testOptions()).SummarizeCategory(ctx, "Storage", text)
		assert.Equal(t, model.SummaryError, got.Kind)
		assert.Equal(t, "Error: GEMINI_API_KEY not configured properly.", got.Text)
	})

	t.Run("sentinels pass through unchanged", func(t *testing.T) {
		gen := &fakeGenerator{}
		s := NewSummarizer(gen, testOptions())
		for _, in := range []string{format.NoResources, format.NoRelevantDetails} {
			got := s.SummarizeCategory(ctx, "Storage", in)
			assert.Equal(t, model.Skipped(in), got)
		}
		assert.Zero(t, gen.calls())
	})

	t.Run("prompt block", func(t *testing.T) {
		gen := &fakeGenerator{steps: []step{{gen: &llm.Generation{BlockReason: "SAFETY", BlockMessage: "unsafe"}}}}
		got := NewSummarizer(gen, testOptions()).SummarizeCategory(ctx, "Storage", text)
		assert.Equal(t, model.Blocked("Content generation blocked by API for Storage. Reason: SAFETY - unsafe"), got)

		gen = &fakeGenerator{steps: []step{{gen: &llm.Generation{BlockReason: "OTHER"}}}}
		got = NewSummarizer(gen, testOptions()).SummarizeCategory(ctx, "Storage", text)
		assert.Equal(t, "Content generation blocked by API for Storage. Reason: OTHER", got.Text)
	})

	t.Run("empty response", func(t *testing.T) {
		gen := &fakeGenerator{steps: []step{{gen: &llm.Generation{Text: "   "}}}}
		got := NewSummarizer(gen, testOptions()).SummarizeCategory(ctx, "Storage", text)
		assert.Equal(t, model.Failed("Error: Gemini API returned an empty response for Storage."), got)
	})

	t.Run("service failure never propagates", func(t *testing.T) {
		gen := &fakeGenerator{steps: []step{{err: errors.New("permission denied")}}}
		got := NewSummarizer(gen, testOptions()).SummarizeCategory(ctx, "Storage", text)
		assert.Equal(t, model.SummaryError, got.Kind)
		assert.True(t, strings.HasPrefix(got.Text, "Error generating summary for Storage due to API call failure: "))
		assert.Contains(t, got.Text, "permission denied")
		assert.Equal(t, 1, gen.calls())
	})

	t.Run("timeout is a service failure", func(t *testing.T) {
		opts := testOptions()
		opts.Timeout = 10 * time.Millisecond
		gen := &fakeGenerator{block: true}
		got := NewSummarizer(gen, opts).SummarizeCategory(ctx, "Storage", text)
		assert.Equal(t, model.SummaryError, got.Kind)
		assert.Contains(t, got.Text, "timeout - ")
	})

	t.Run("rate limit is retried", func(t *testing.T) {
		gen := &fakeGenerator{steps: []step{
			{err: errors.New("Error 429, Status: RESOURCE_EXHAUSTED")},
			{err: errors.New("Error 429, Status: RESOURCE_EXHAUSTED")},
			{gen: &llm.Generation{Text: "ok"}},
		}}
		got := NewSummarizer(gen, testOptions()).SummarizeCategory(ctx, "Storage", text)
		assert.Equal(t, model.Succeeded("ok"), got)
		assert.Equal(t, 3, gen.calls())
	})

	t.Run("rate limit gives up after max retries", func(t *testing.T) {
		gen := &fakeGenerator{steps: []step{{err: errors.New("429 Too Many Requests")}}}
		got := NewSummarizer(gen, testOptions()).SummarizeCategory(ctx, "Storage", text)
		assert.Equal(t, model.SummaryError, got.Kind)
		assert.Equal(t, 3, gen.calls())
	})
}

func TestSummarizeAll(t *testing.T) {
	ctx := context.Background()
	outcomes := []model.CategoryOutcome{
		{CategoryName: "Compute", Summary: model.Succeeded("Compute analysis.")},
		{CategoryName: "Empty", Summary: model.Skipped(format.NoResources)},
		{CategoryName: "Broken", Summary: model.Failed("Error: GEMINI_API_KEY not configured properly.")},
		{CategoryName: "Blocked", Summary: model.Blocked("Content generation blocked by API for Blocked. Reason: SAFETY")},
		{CategoryName: "Storage", Summary: model.Succeeded("Storage analysis.")},
	}

	t.Run("errors and skips are left out, order kept", func(t *testing.T) {
		gen := &fakeGenerator{steps: []step{{gen: &llm.Generation{Text: "Overall."}}}}
		got := NewSummarizer(gen, testOptions()).SummarizeAll(ctx, outcomes)
		assert.Equal(t, model.Succeeded("Overall."), got)
		require.Equal(t, 1, gen.calls())
		assert.Contains(t, gen.prompts[0], "## Compute\nCompute analysis.\n\n"+
			"## Blocked\nContent generation blocked by API for Blocked. Reason: SAFETY\n\n"+
			"## Storage\nStorage analysis.\n\n")
		assert.NotContains(t, gen.prompts[0], "## Empty")
		assert.NotContains(t, gen.prompts[0], "## Broken")
	})

	// 只有拦截说明时仍然生成执行摘要
	t.Run("blocked summary alone still qualifies", func(t *testing.T) {
		gen := &fakeGenerator{steps: []step{{gen: &llm.Generation{Text: "Overall."}}}}
		got := NewSummarizer(gen, testOptions()).SummarizeAll(ctx, outcomes[3:4])
		assert.Equal(t, model.Succeeded("Overall."), got)
		require.Equal(t, 1, gen.calls())
		assert.Contains(t, gen.prompts[0], "## Blocked\nContent generation blocked by API for Blocked. Reason: SAFETY\n\n")
	})

	// 按标签过滤：跳过的结果即使不以 "Error:" 开头也不会进入汇总
	t.Run("no qualifying summaries", func(t *testing.T) {
		gen := &fakeGenerator{}
		got := NewSummarizer(gen, testOptions()).SummarizeAll(ctx, outcomes[1:3])
		assert.Equal(t, model.Skipped(NoExecutiveSummary), got)
		assert.Zero(t, gen.calls())
	})

	t.Run("missing key after filtering", func(t *testing.T) {
		got := NewSummarizer(nil, testOptions()).SummarizeAll(ctx, outcomes[1:3])
		assert.Equal(t, NoExecutiveSummary, got.Text)

		got = NewSummarizer(nil, testOptions()).SummarizeAll(ctx, outcomes)
		assert.Equal(t, model.Failed("Error: GEMINI_API_KEY not configured properly."), got)
	})

	t.Run("classification uses executive summary name", func(t *testing.T) {
		gen := &fakeGenerator{steps: []step{{gen: &llm.Generation{BlockReason: "SAFETY"}}}}
		got := NewSummarizer(gen, testOptions()).SummarizeAll(ctx, outcomes)
		assert.Equal(t, "Content generation blocked by API for Executive Summary. Reason: SAFETY", got.Text)

		gen = &fakeGenerator{steps: []step{{err: errors.New("boom")}}}
		got = NewSummarizer(gen, testOptions()).SummarizeAll(ctx, outcomes)
		assert.True(t, strings.HasPrefix(got.Text, "Error generating Executive Summary due to API call failure: "))
	})
}

func TestNewSummarizerUnlimitedRate(t *testing.T) {
	var buf bytes.Buffer
	out := logger.Log.Out
	logger.Log.SetOutput(&buf)
	t.Cleanup(func() { logger.Log.SetOutput(out) })

	s := NewSummarizer(&fakeGenerator{}, Options{})
	assert.Equal(t, rate.Inf, s.limiter.Limit())
	assert.Equal(t, 1, s.limiter.Burst())
	assert.Contains(t, buf.String(), "Limit=unlimited, Burst=1")

	buf.Reset()
	NewSummarizer(&fakeGenerator{}, Options{RPM: 60, QPS: 3})
	assert.Contains(t, buf.String(), "Limit=1.00 req/s, Burst=3")
}

func TestPrompts(t *testing.T) {
	p := CategoryPrompt("Networking", "- Name: vnet1")
	assert.Contains(t, p, "The third paragraph should cover:")
	assert.Contains(t, p, "Detailed Resource Data for Networking:\n- Name: vnet1\n\nIn-depth Analysis:")
	assert.Contains(t, p, "DO NOT USE unclear language")
	assert.Contains(t, p, "minimise any reference to the AI model")

	e := ExecutivePrompt("## A\nx\n\n")
	assert.True(t, strings.HasSuffix(e, "Individual Category Summaries:\n## A\nx\n\n\n\nExecutive Summary:"))
}
