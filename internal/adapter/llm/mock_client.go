package llm

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// MockClient is a mock implementation of LLMClient for tests and for
// running the service without a gateway. It inspects the system prompt to
// return a structurally valid payload for the calling capability.
type MockClient struct{}

// NewMockClient creates a new mock LLM client.
func NewMockClient() *MockClient {
	return &MockClient{}
}

var _ LLMClient = (*MockClient)(nil)

// CreateChatCompletion returns a canned response matching the declared JSON
// shape of the calling capability.
func (m *MockClient) CreateChatCompletion(ctx context.Context, req *ChatCompletionRequest) (*ChatCompletionResponse, error) {
	var system string
	for _, msg := range req.Messages {
		if msg.Role == "system" {
			system = msg.Content
			break
		}
	}

	content := m.payloadFor(system)
	return &ChatCompletionResponse{
		ID:      fmt.Sprintf("mock-chatcmpl-%d", time.Now().UnixNano()),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   req.Model,
		Choices: []Choice{
			{
				Index: 0,
				Message: &ChatMessage{
					Role:    "assistant",
					Content: content,
				},
				FinishReason: "stop",
			},
		},
		Usage: &Usage{
			PromptTokens:     estimateTokens(req),
			CompletionTokens: len(content) / 4,
			TotalTokens:      estimateTokens(req) + len(content)/4,
		},
	}, nil
}

func (m *MockClient) payloadFor(system string) string {
	switch {
	case strings.Contains(system, "briefing_card"):
		return `{"briefing_card":{"patient_ref":"","summary":"No clinical records available for review.","alerts":[],"pending_treatments":[],"treatment_gaps":[],"risk_flags":[],"last_visit":"unknown","next_recommended":"Collect chart history"},"confidence":0.5,"data_quality":"insufficient"}`
	case strings.Contains(system, "outbound communications"):
		return `{"messages":[{"channel":"sms","recipient_ref":"{patient_ref}","template_type":"general","body":"Hello {patient_name}, this is {practice_name}. Reply STOP to opt out.","urgency":"low","send_at":"now","requires_approval":false}],"notes":"mock draft"}`
	case strings.Contains(system, "compliance audit"):
		return `{"status":"pass","checks_performed":["phi_scan"],"findings":[],"compliance_score":100,"phi_exposure_detected":false}`
	default:
		return `{"patient_identified":false,"patient_ref":"","refined_intent":"general_inquiry","confidence":0.6,"can_handle":true,"response":"Thanks for reaching out — how can we help?","action_taken":"","escalate":false,"escalation_reason":"","notes":"mock response"}`
	}
}

func estimateTokens(req *ChatCompletionRequest) int {
	total := 0
	for _, msg := range req.Messages {
		total += len(msg.Content) / 4
	}
	return total
}
