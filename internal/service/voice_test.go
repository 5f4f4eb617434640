package service

import (
	"testing"
	"time"
)

func TestGrantAndRevokePublish(t *testing.T) {
	voice := NewVoiceTokenService("voice-secret", time.Minute)

	if voice.CanPublish(1, 7) {
		t.Fatal("publish should be denied before grant")
	}

	voice.GrantPublish(1, 7)
	if !voice.CanPublish(1, 7) {
		t.Fatal("publish should be allowed after grant")
	}
	if voice.CanPublish(2, 7) {
		t.Error("grant is scoped to one room")
	}

	voice.RevokePublish(1, 7)
	if voice.CanPublish(1, 7) {
		t.Error("publish should be denied after revoke")
	}
}

func TestIssueTokenReflectsPublishGrant(t *testing.T) {
	voice := NewVoiceTokenService("voice-secret", time.Minute)
	voice.GrantPublish(1, 7)

	speaker, err := voice.IssueToken(1, 7)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	listener, err := voice.IssueToken(1, 8)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	claims, err := voice.ParseToken(speaker)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if claims.RoomID != 1 || claims.UserID != 7 || !claims.CanPublish {
		t.Errorf("speaker token should carry can_publish, got %+v", claims)
	}

	claims, err = voice.ParseToken(listener)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if claims.CanPublish {
		t.Error("listener token should be subscribe-only")
	}
}

func TestParseTokenRejectsForeignSignature(t *testing.T) {
	issuer := NewVoiceTokenService("secret-a", time.Minute)
	verifier := NewVoiceTokenService("secret-b", time.Minute)

	token, err := issuer.IssueToken(1, 7)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if _, err := verifier.ParseToken(token); err == nil {
		t.Error("token from another signer should not parse")
	}
}
