package engine

import (
	"reflect"
	"testing"
	"time"
)

// fakeClock pins time for the engine tests.
type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time                         { return f.now }
func (f *fakeClock) After(d time.Duration) <-chan time.Time { return time.After(0) }
func (f *fakeClock) Sleep(d time.Duration)                  {}

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestContext(payload map[string]interface{}) *ExecutionContext {
	return NewExecutionContext("wf-1", "High click alert", "link.click.threshold", payload, &fakeClock{now: testNow})
}

func TestResolveTemplate_Builtins(t *testing.T) {
	ec := newTestContext(nil)

	cases := map[string]string{
		"{{workflowName}}": "High click alert",
		"{{workflowId}}":   "wf-1",
		"{{triggerEvent}}": "link.click.threshold",
		"{{timestamp}}":    "2025-06-01T12:00:00Z",
	}
	for in, want := range cases {
		if got := ec.ResolveTemplate(in); got != want {
			t.Errorf("ResolveTemplate(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestResolveTemplate_PayloadFields(t *testing.T) {
	ec := newTestContext(map[string]interface{}{
		"linkUrl": "https://lnk.day/abc",
		"link":    map[string]interface{}{"title": "Summer promo"},
	})

	got := ec.ResolveTemplate("Link {{link.title}} at {{linkUrl}} fired")
	want := "Link Summer promo at https://lnk.day/abc fired"
	if got != want {
		t.Errorf("Got %q, want %q", got, want)
	}
}

func TestResolveTemplate_UnresolvedLeftLiteral(t *testing.T) {
	ec := newTestContext(map[string]interface{}{})

	got := ec.ResolveTemplate("value is {{no.such.field}}")
	if got != "value is {{no.such.field}}" {
		t.Errorf("Expected unresolved placeholder to stay literal, got %q", got)
	}
}

func TestResolveTemplate_WhitespaceInsidePlaceholder(t *testing.T) {
	ec := newTestContext(map[string]interface{}{"name": "alex"})

	if got := ec.ResolveTemplate("hi {{ name }}"); got != "hi alex" {
		t.Errorf("Got %q, want %q", got, "hi alex")
	}
}

func TestResolveConfig_Recursive(t *testing.T) {
	ec := newTestContext(map[string]interface{}{"country": "DE"})

	config := map[string]interface{}{
		"subject": "Clicks from {{country}}",
		"nested": map[string]interface{}{
			"list": []interface{}{"{{country}}", "static"},
		},
		"number": float64(7),
	}
	got := ec.ResolveConfig(config)

	want := map[string]interface{}{
		"subject": "Clicks from DE",
		"nested": map[string]interface{}{
			"list": []interface{}{"DE", "static"},
		},
		"number": float64(7),
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ResolveConfig = %#v, want %#v", got, want)
	}
}

func TestResolveConfig_DoesNotMutateInput(t *testing.T) {
	ec := newTestContext(map[string]interface{}{"country": "DE"})

	config := map[string]interface{}{"subject": "{{country}}"}
	ec.ResolveConfig(config)
	if config["subject"] != "{{country}}" {
		t.Error("Expected original config to stay untouched")
	}
}

func TestAppendActionOutput_VisibleToLaterTemplates(t *testing.T) {
	ec := newTestContext(map[string]interface{}{})

	ec.AppendActionOutput(0, map[string]interface{}{"reportId": "rep-9"})

	got := ec.ResolveTemplate("report {{_action0_output.reportId}}")
	if got != "report rep-9" {
		t.Errorf("Got %q, want %q", got, "report rep-9")
	}
}

func TestAppendActionOutput_NilSkipped(t *testing.T) {
	ec := newTestContext(map[string]interface{}{})

	ec.AppendActionOutput(0, nil)
	if _, ok := ec.Data["_action0_output"]; ok {
		t.Error("Expected nil output not to be recorded")
	}
}

func TestResolveRecipients(t *testing.T) {
	ec := newTestContext(map[string]interface{}{"ownerEmail": "owner@example.com"})

	if got := ec.ResolveRecipients("{{ownerEmail}}"); !reflect.DeepEqual(got, []string{"owner@example.com"}) {
		t.Errorf("Got %v", got)
	}
	if got := ec.ResolveRecipients([]interface{}{"a@example.com", "b@example.com"}); len(got) != 2 {
		t.Errorf("Expected two recipients, got %v", got)
	}
	if got := ec.ResolveRecipients(nil); len(got) != 0 {
		t.Errorf("Expected no recipients for nil, got %v", got)
	}
}

func TestNewExecutionContext_CopiesPayload(t *testing.T) {
	payload := map[string]interface{}{"k": "v"}
	ec := newTestContext(payload)

	ec.Data["k"] = "changed"
	if payload["k"] != "v" {
		t.Error("Expected context to work on a copy of the payload")
	}
}

func TestTriggerData_UnaffectedByActionOutputs(t *testing.T) {
	ec := newTestContext(map[string]interface{}{"country": "DE"})
	ec.AppendActionOutput(0, map[string]interface{}{"reportId": "rep-1"})

	trigger := ec.TriggerData()
	if trigger["country"] != "DE" {
		t.Errorf("Expected original payload in trigger data, got %v", trigger)
	}
	if _, ok := trigger["_action0_output"]; ok {
		t.Error("Expected trigger data to stay a snapshot of the triggering payload")
	}
}
