// Copyright (c) 2025 BVK Chaitanya

package api

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"testing"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}

	req := &PauseRequest{Paused: true}
	signed, err := SignRequest(key, req)
	if err != nil {
		t.Fatal(err)
	}

	var back PauseRequest
	if err := VerifyRequest(&key.PublicKey, signed, &back); err != nil {
		t.Fatal(err)
	}
	if back.Paused != req.Paused {
		t.Fatalf("want %v, got %v", req.Paused, back.Paused)
	}
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	other, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}

	signed, err := SignRequest(key, &PauseRequest{Paused: true})
	if err != nil {
		t.Fatal(err)
	}
	var back PauseRequest
	if err := VerifyRequest(&other.PublicKey, signed, &back); err == nil {
		t.Fatalf("verification with the wrong key must fail")
	}
}

func TestVerifyRejectsTamperedPayload(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	signed, err := SignRequest(key, &PauseRequest{Paused: true})
	if err != nil {
		t.Fatal(err)
	}

	var garbage SignedRequest
	garbage.JWS = signed.JWS[:len(signed.JWS)-2]
	var back PauseRequest
	if err := VerifyRequest(&key.PublicKey, &garbage, &back); err == nil {
		t.Fatalf("tampered request must fail verification")
	}
}
