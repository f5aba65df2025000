package messagequeue

import (
	"strings"
	"testing"
)

func TestValidateDecisionRecorded(t *testing.T) {
	data := []byte(`{"decision_id":"d1","task_id":"t1","destination":"sark","confidence":0.8,"strategy":"rules"}`)
	if err := Validate(SubjectDecisionRecorded, data); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateInvalidJSON(t *testing.T) {
	err := Validate(SubjectDecisionRecorded, []byte(`{not json`))
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "invalid JSON") {
		t.Errorf("expected invalid JSON error, got %v", err)
	}
}

func TestValidateSchemaMismatch(t *testing.T) {
	// confidence must be a number
	data := []byte(`{"decision_id":"d1","confidence":"high"}`)
	err := Validate(SubjectDecisionRecorded, data)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "schema validation failed") {
		t.Errorf("expected schema validation error, got %v", err)
	}
}

func TestValidateUnknownSubjectPasses(t *testing.T) {
	if err := Validate("some.future.subject", []byte(`{"anything":true}`)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateFeedbackReceived(t *testing.T) {
	data := []byte(`{"feedback_id":"f1","decision_id":"d1","task_id":"t1","was_good_match":false}`)
	if err := Validate(SubjectFeedbackReceived, data); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
