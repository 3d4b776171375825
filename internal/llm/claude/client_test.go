package claude

import (
	"errors"
	"net/http"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/linnemanlabs/acuity/internal/llm"
	"github.com/linnemanlabs/acuity/internal/triage"
)

func TestToSDKMessages_Roles(t *testing.T) {
	t.Parallel()

	msgs := []triage.PromptMessage{
		{Role: triage.RoleUser, Content: "my chest hurts"},
		{Role: triage.RoleAssistant, Content: "when did it start?"},
		{Role: triage.RoleUser, Content: "an hour ago"},
	}

	result := toSDKMessages(msgs)
	if len(result) != 3 {
		t.Fatalf("len = %d, want 3", len(result))
	}

	wantRoles := []anthropic.MessageParamRole{
		anthropic.MessageParamRoleUser,
		anthropic.MessageParamRoleAssistant,
		anthropic.MessageParamRoleUser,
	}
	for i, want := range wantRoles {
		if result[i].Role != want {
			t.Errorf("result[%d].Role = %q, want %q", i, result[i].Role, want)
		}
	}

	if result[0].Content[0].OfText == nil {
		t.Fatal("expected OfText to be set")
	}
	if result[0].Content[0].OfText.Text != "my chest hurts" {
		t.Errorf("text = %q, want %q", result[0].Content[0].OfText.Text, "my chest hurts")
	}
}

func TestToSDKMessages_Empty(t *testing.T) {
	t.Parallel()

	if got := toSDKMessages(nil); len(got) != 0 {
		t.Errorf("len = %d, want 0", len(got))
	}
}

func TestClassify_APIError(t *testing.T) {
	t.Parallel()

	err := classify(&anthropic.Error{StatusCode: http.StatusTooManyRequests})

	var pe *llm.ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %T, want *llm.ProviderError", err)
	}
	if pe.Backend != "claude" {
		t.Errorf("Backend = %q, want claude", pe.Backend)
	}
	if pe.Status != http.StatusTooManyRequests {
		t.Errorf("Status = %d, want 429", pe.Status)
	}
	if !pe.Retryable {
		t.Error("429 should be retryable")
	}
}

func TestClassify_PlainError(t *testing.T) {
	t.Parallel()

	err := classify(errors.New("connection reset"))

	var pe *llm.ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %T, want *llm.ProviderError", err)
	}
	if pe.Status != 0 || !pe.Retryable {
		t.Errorf("Status = %d Retryable = %v, want 0/true for network errors", pe.Status, pe.Retryable)
	}
}
