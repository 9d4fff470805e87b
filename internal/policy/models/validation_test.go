package models

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	dErrors "casekeeper/pkg/domain-errors"
)

func TestCreatePolicyRequest_Validate(t *testing.T) {
	valid := func() CreatePolicyRequest {
		return CreatePolicyRequest{
			Name:       "Investigator + Forensics",
			Categories: json.RawMessage(`["Evidence"]`),
			Rules:      json.RawMessage(`[{"org":"Org1MSP","read":true}]`),
		}
	}

	tests := []struct {
		name    string
		mutate  func(*CreatePolicyRequest)
		wantErr string
	}{
		{name: "valid", mutate: func(*CreatePolicyRequest) {}},
		{name: "missing name", mutate: func(r *CreatePolicyRequest) { r.Name = "   " }, wantErr: "name is required"},
		{name: "long name", mutate: func(r *CreatePolicyRequest) { r.Name = strings.Repeat("x", 121) }, wantErr: "name is too long"},
		{name: "categories object", mutate: func(r *CreatePolicyRequest) { r.Categories = json.RawMessage(`{"a":1}`) }, wantErr: "categories must be a JSON array"},
		{name: "rules malformed", mutate: func(r *CreatePolicyRequest) { r.Rules = json.RawMessage(`[{`) }, wantErr: "rules must be a JSON array"},
		{name: "missing arrays default to empty", mutate: func(r *CreatePolicyRequest) { r.Categories, r.Rules = nil, nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid()
			tt.mutate(&req)
			req.Normalize()
			err := req.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
			assert.Equal(t, tt.wantErr, dErrors.MessageOf(err))
		})
	}
}
