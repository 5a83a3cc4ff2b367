package toolgate

import (
	"testing"

	"github.com/MLTQ/Ponderer/internal/apperr"
)

func TestProfile_DenyTakesPrecedenceOverAllow(t *testing.T) {
	p := Profile{
		Allowed: toolSet("shell"),
		Denied:  toolSet("shell"),
	}
	if p.allows("shell") {
		t.Error("expected deny to win when a tool is both allowed and denied")
	}
}

func TestGate_AmbientDeniesWriteFileShellExternalPost(t *testing.T) {
	g := &Gate{profiles: DefaultProfiles(), active: ProfileAmbient}
	for _, tool := range []string{"shell", "write_file", "patch_file", "http_fetch_write", "generate_media"} {
		if err := g.Check(ProfileAmbient, tool); !apperr.Is(err, apperr.CapabilityDenied) {
			t.Errorf("Check(Ambient, %q) = %v, want CapabilityDenied", tool, err)
		}
	}
}

func TestGate_AmbientAllowsReadHeavyTools(t *testing.T) {
	g := &Gate{profiles: DefaultProfiles(), active: ProfileAmbient}
	for _, tool := range []string{"read_file", "list_directory", "search_memory", "http_fetch_read"} {
		if err := g.Check(ProfileAmbient, tool); err != nil {
			t.Errorf("Check(Ambient, %q) = %v, want nil", tool, err)
		}
	}
}

func TestGate_DreamDeniesShellAndHTTP(t *testing.T) {
	g := &Gate{profiles: DefaultProfiles(), active: ProfileDream}
	for _, tool := range []string{"shell", "http_fetch_read", "http_fetch_write"} {
		if err := g.Check(ProfileDream, tool); !apperr.Is(err, apperr.CapabilityDenied) {
			t.Errorf("Check(Dream, %q) = %v, want CapabilityDenied", tool, err)
		}
	}
}

func TestGate_PrivateChatIsFullAccess(t *testing.T) {
	g := &Gate{profiles: DefaultProfiles(), active: ProfilePrivateChat}
	for _, tool := range []string{"shell", "write_file", "http_fetch_write", "anything_else"} {
		if err := g.Check(ProfilePrivateChat, tool); err != nil {
			t.Errorf("Check(PrivateChat, %q) = %v, want nil", tool, err)
		}
	}
}

func TestGate_ApproveToolGrantsSessionException(t *testing.T) {
	g := New(nil)
	g.SetProfile(ProfileAmbient)

	if err := g.Check(ProfileAmbient, "generate_media"); !apperr.Is(err, apperr.CapabilityDenied) {
		t.Fatalf("expected generate_media denied under Ambient before approval, got %v", err)
	}

	// Approval never overrides an explicit Denied entry.
	g.ApproveTool("generate_media")
	if err := g.Check(ProfileAmbient, "generate_media"); !apperr.Is(err, apperr.CapabilityDenied) {
		t.Errorf("expected denied tool to stay denied even after approval, got %v", err)
	}

	// A neither-allowed-nor-denied tool under a restrictive profile becomes
	// permitted once approved.
	const unlistedTool = "summarize_thread"
	if err := g.Check(ProfileAmbient, unlistedTool); !apperr.Is(err, apperr.CapabilityDenied) {
		t.Fatalf("expected %q denied under Ambient's restrictive allowlist before approval, got %v", unlistedTool, err)
	}
	g.ApproveTool(unlistedTool)
	if err := g.Check(ProfileAmbient, unlistedTool); err != nil {
		t.Errorf("expected %q permitted after approval, got %v", unlistedTool, err)
	}
}

func TestGate_UnknownProfileIsValidationError(t *testing.T) {
	g := &Gate{profiles: DefaultProfiles(), active: ProfilePrivateChat}
	err := g.Check(ProfileName("nonexistent"), "read_file")
	if !apperr.Is(err, apperr.Validation) {
		t.Errorf("Check(unknown profile) = %v, want Validation", err)
	}
}
