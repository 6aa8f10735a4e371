package openai

import (
	"context"
	"strings"

	"hrguard/pkg/aiinterface"

	openai "github.com/sashabaranov/go-openai"
)

// Client OpenAI 客户端适配器
type Client struct {
	client  *openai.Client
	modelID string
}

// NewClient 创建 OpenAI 客户端
// 不做自动重试：上游失败直接上抛给调用方，由调用方决定是否重新发起
func NewClient(config *aiinterface.ClientConfig) (*Client, error) {
	if config.APIKey == "" {
		return nil, &aiinterface.ClientError{
			Type:    aiinterface.ErrorTypeAuth,
			Message: "OpenAI API Key 不能为空",
		}
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	return &Client{
		client:  openai.NewClientWithConfig(clientConfig),
		modelID: config.Model,
	}, nil
}

// ChatCompletion 对话补全（非流式）
func (c *Client) ChatCompletion(ctx context.Context, req *aiinterface.ChatCompletionRequest) (*aiinterface.ChatCompletionResponse, error) {
	messages := make([]openai.ChatCompletionMessage, len(req.Messages))
	for i, msg := range req.Messages {
		messages[i] = openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.modelID,
		Messages:    messages,
		Temperature: float32(req.Temperature),
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return nil, wrapError(err)
	}

	if len(resp.Choices) == 0 {
		return nil, &aiinterface.ClientError{
			Type:    aiinterface.ErrorTypeServerError,
			Message: "API 返回空响应",
		}
	}

	return &aiinterface.ChatCompletionResponse{
		ID:      resp.ID,
		Model:   resp.Model,
		Content: resp.Choices[0].Message.Content,
		Usage: aiinterface.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

// Name 返回客户端名称
func (c *Client) Name() string {
	return "openai"
}

// Close 关闭客户端
func (c *Client) Close() error {
	// OpenAI 客户端无需显式关闭
	return nil
}

// wrapError 包装错误
// 速率限制与额度不足区分成独立类型，API 层据此映射状态码
func wrapError(err error) *aiinterface.ClientError {
	errMsg := strings.ToLower(err.Error())

	var errType aiinterface.ErrorType
	switch {
	case strings.Contains(errMsg, "402") || strings.Contains(errMsg, "insufficient_quota") || strings.Contains(errMsg, "quota"):
		errType = aiinterface.ErrorTypePaymentRequired
	case strings.Contains(errMsg, "401") || strings.Contains(errMsg, "403"):
		errType = aiinterface.ErrorTypeAuth
	case strings.Contains(errMsg, "rate limit") || strings.Contains(errMsg, "429"):
		errType = aiinterface.ErrorTypeRateLimit
	case strings.Contains(errMsg, "400") || strings.Contains(errMsg, "invalid"):
		errType = aiinterface.ErrorTypeInvalidParams
	case strings.Contains(errMsg, "500") || strings.Contains(errMsg, "502") || strings.Contains(errMsg, "503"):
		errType = aiinterface.ErrorTypeServerError
	case strings.Contains(errMsg, "timeout") || strings.Contains(errMsg, "connection"):
		errType = aiinterface.ErrorTypeNetwork
	default:
		errType = aiinterface.ErrorTypeUnknown
	}

	return &aiinterface.ClientError{
		Type:    errType,
		Message: "OpenAI API 错误",
		Err:     err,
	}
}
