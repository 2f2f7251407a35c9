// Package resourcegraph 通过 Azure Resource Graph 查询订阅中的资源
package resourcegraph

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resourcegraph/armresourcegraph"

	"github.com/iWorld-y/azure_radar/internal/config"
	"github.com/iWorld-y/azure_radar/internal/logger"
	"github.com/iWorld-y/azure_radar/internal/model"
)

// ErrNoSubscription 未提供订阅 ID
var ErrNoSubscription = errors.New("azure subscription id is empty")

// Querier 资源查询接口
type Querier interface {
	Query(ctx context.Context, subscriptionID, query string) ([]model.Value, error)
}

// resourcesAPI armresourcegraph.Client 中用到的方法
type resourcesAPI interface {
	Resources(ctx context.Context, query armresourcegraph.QueryRequest, options *armresourcegraph.ClientResourcesOptions) (armresourcegraph.ClientResourcesResponse, error)
}

// Client Resource Graph 查询客户端
type Client struct {
	api      resourcesAPI
	timeout  time.Duration
	pageSize int
	maxPages int
}

var _ Querier = (*Client)(nil)

// NewCredential 使用 DefaultAzureCredential (环境变量、托管标识、az login 等)
func NewCredential() (azcore.TokenCredential, error) {
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("azure credential: %w", err)
	}
	return cred, nil
}

// NewClient 创建查询客户端
func NewClient(cred azcore.TokenCredential, cfg config.AzureConfig) (*Client, error) {
	api, err := armresourcegraph.NewClient(cred, nil)
	if err != nil {
		return nil, fmt.Errorf("resource graph client: %w", err)
	}
	return newClient(api, cfg), nil
}

func newClient(api resourcesAPI, cfg config.AzureConfig) *Client {
	return &Client{
		api:      api,
		timeout:  cfg.QueryTimeout,
		pageSize: cfg.PageSize,
		maxPages: cfg.MaxPages,
	}
}

// Query 执行 KQL 查询并按 $skipToken 翻页，任何失败都返回错误且不返回部分结果
func (c *Client) Query(ctx context.Context, subscriptionID, query string) ([]model.Value, error) {
	if subscriptionID == "" {
		return nil, ErrNoSubscription
	}
	logger.Log.Infof("正在为订阅 %s 执行 Resource Graph 查询...", subscriptionID)

	var rows []model.Value
	var skipToken *string
	for page := 0; ; page++ {
		if c.maxPages > 0 && page >= c.maxPages {
			logger.Log.Warnf("查询结果超过 %d 页，已截断为 %d 条记录", c.maxPages, len(rows))
			break
		}

		resp, raw, err := c.page(ctx, subscriptionID, query, skipToken)
		if err != nil {
			logQueryError(err)
			return nil, fmt.Errorf("resource graph query: %w", err)
		}

		pageRows, err := decodePage(raw, resp.Data)
		if err != nil {
			logger.Log.Errorf("无法解析 Resource Graph 返回的数据: %v", err)
			return nil, err
		}
		rows = append(rows, pageRows...)

		if resp.SkipToken == nil || *resp.SkipToken == "" {
			break
		}
		skipToken = resp.SkipToken
		logger.Log.Debugf("继续获取第 %d 页, 已获取 %d 条记录", page+2, len(rows))
	}

	logger.Log.Infof("查询返回 %d 条记录", len(rows))
	return rows, nil
}

// page 单页查询，raw 为捕获到的原始响应体
func (c *Client) page(ctx context.Context, subscriptionID, query string, skipToken *string) (armresourcegraph.ClientResourcesResponse, []byte, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var httpResp *http.Response
	ctx = policy.WithCaptureResponse(ctx, &httpResp)

	opts := &armresourcegraph.QueryRequestOptions{
		ResultFormat: to.Ptr(armresourcegraph.ResultFormatObjectArray),
		SkipToken:    skipToken,
	}
	if c.pageSize > 0 {
		opts.Top = to.Ptr(int32(c.pageSize))
	}

	resp, err := c.api.Resources(ctx, armresourcegraph.QueryRequest{
		Query:         to.Ptr(query),
		Subscriptions: []*string{to.Ptr(subscriptionID)},
		Options:       opts,
	}, nil)
	if err != nil {
		return resp, nil, err
	}

	var raw []byte
	if httpResp != nil {
		if body, perr := runtime.Payload(httpResp); perr == nil {
			raw = body
		}
	}
	return resp, raw, nil
}

// logQueryError 输出状态码、错误码和响应体
func logQueryError(err error) {
	var respErr *azcore.ResponseError
	if !errors.As(err, &respErr) {
		logger.Log.Errorf("Resource Graph 查询发生未知错误: %T - %v", err, err)
		return
	}

	logger.Log.Errorf("Resource Graph 查询失败. Status: %d, Code: %s", respErr.StatusCode, respErr.ErrorCode)
	if respErr.RawResponse == nil || respErr.RawResponse.Body == nil {
		logger.Log.Warn("响应中没有详细的错误信息")
		return
	}
	body, rerr := runtime.Payload(respErr.RawResponse)
	if rerr != nil || len(body) == 0 {
		logger.Log.Warn("响应中没有详细的错误信息")
		return
	}
	logger.Log.Errorf("详细错误信息:\n%s", prettyBody(body))
}

// prettyBody JSON 响应体缩进输出，否则原样返回
func prettyBody(body []byte) string {
	var out bytes.Buffer
	if err := json.Indent(&out, body, "", "  "); err != nil {
		return string(body)
	}
	return out.String()
}
