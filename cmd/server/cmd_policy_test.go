package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadPolicyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: Court only
description: Judiciary may read
categories: [Evidence, Report]
rules:
  - org: Org3MSP
    read: true
`), 0o600))

	req, err := readPolicyFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Court only", req.Name)
	assert.JSONEq(t, `["Evidence","Report"]`, string(req.Categories))
	assert.JSONEq(t, `[{"org":"Org3MSP","read":true}]`, string(req.Rules))
	require.NoError(t, req.Validate())
}

func TestReadPolicyFileRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: [unterminated"), 0o600))

	_, err := readPolicyFile(path)
	assert.Error(t, err)
}
