package dispatch

import (
	"testing"

	"github.com/matheus3301/mchat/internal/protocol"
	"github.com/matheus3301/mchat/internal/protocol/prototest"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestSendRoutesToBackend(t *testing.T) {
	d := New(nil)
	a := prototest.New("a", protocol.FeatureNone)
	b := prototest.New("b", protocol.FeatureNone)
	if err := d.Register(a); err != nil {
		t.Fatal(err)
	}
	if err := d.Register(b); err != nil {
		t.Fatal(err)
	}

	if !d.Send("b", protocol.GetChatsRequest{}) {
		t.Fatal("Send() = false, want true")
	}
	if n := len(a.Requests()); n != 0 {
		t.Errorf("backend a got %d requests, want 0", n)
	}
	if n := len(b.Requests()); n != 1 {
		t.Errorf("backend b got %d requests, want exactly 1", n)
	}
}

func TestSendUnknownAccountDropsAndLogs(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	d := New(zap.New(core))

	if d.Send("missing", protocol.GetChatsRequest{}) {
		t.Error("Send() to unknown account = true, want false")
	}
	if logs.FilterMessage("dropping request for unknown account").Len() != 1 {
		t.Errorf("expected one drop log entry, got %v", logs.All())
	}
}

func TestSendBackendRejection(t *testing.T) {
	d := New(nil)
	b := prototest.New("a", protocol.FeatureNone)
	b.Reject = true
	_ = d.Register(b)

	if d.Send("a", protocol.SetStatusRequest{IsOnline: true}) {
		t.Error("Send() with rejecting backend = true, want false")
	}
}

func TestRegisterDuplicate(t *testing.T) {
	d := New(nil)
	if err := d.Register(prototest.New("a", 0)); err != nil {
		t.Fatal(err)
	}
	if err := d.Register(prototest.New("a", 0)); err == nil {
		t.Error("Register() duplicate should fail")
	}
}

func TestAccountsAndFeatures(t *testing.T) {
	d := New(nil)
	_ = d.Register(prototest.New("z", protocol.FeatureReactions))
	_ = d.Register(prototest.New("a", protocol.FeatureNone))

	got := d.Accounts()
	if len(got) != 2 || got[0] != "a" || got[1] != "z" {
		t.Errorf("Accounts() = %v, want [a z]", got)
	}
	if !d.SupportsFeature("z", protocol.FeatureReactions) {
		t.Error("SupportsFeature(z, reactions) = false")
	}
	if d.SupportsFeature("missing", protocol.FeatureReactions) {
		t.Error("SupportsFeature(missing) = true")
	}
	if got := d.SelfID("a"); got != "self" {
		t.Errorf("SelfID(a) = %q, want self", got)
	}
	if got := d.SelfID("missing"); got != "" {
		t.Errorf("SelfID(missing) = %q, want empty", got)
	}
}
