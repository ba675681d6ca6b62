// Copyright (c) 2025 BVK Chaitanya

package api

import (
	"crypto/ecdsa"
	"encoding/json"

	jose "gopkg.in/square/go-jose.v2"
)

// SignRequest wraps an admin request in a compact JWS signed with the
// admin's ES256 private key.
func SignRequest(key *ecdsa.PrivateKey, req any) (*SignedRequest, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.ES256, Key: key}, nil)
	if err != nil {
		return nil, err
	}
	obj, err := signer.Sign(data)
	if err != nil {
		return nil, err
	}
	compact, err := obj.CompactSerialize()
	if err != nil {
		return nil, err
	}
	return &SignedRequest{JWS: compact}, nil
}

// VerifyRequest checks a signed admin request against the admin public key
// and decodes the payload into req.
func VerifyRequest(key *ecdsa.PublicKey, sr *SignedRequest, req any) error {
	obj, err := jose.ParseSigned(sr.JWS)
	if err != nil {
		return err
	}
	payload, err := obj.Verify(key)
	if err != nil {
		return err
	}
	return json.Unmarshal(payload, req)
}
