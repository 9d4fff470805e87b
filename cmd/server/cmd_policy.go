package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"casekeeper/internal/policy/models"
)

var policyFlags struct {
	file string
	as   string
}

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Manage access policies",
}

var policyCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an access policy from a YAML file",
	Long: `Creates the policy in the ledger and locally, exactly as POST /admin/policies does.

Example policy.yaml:

  name: Investigators and forensics
  description: Evidence readable by both police and lab
  categories: [Evidence]
  rules:
    - org: Org1MSP
      read: true
    - org: Org2MSP
      read: true`,
	RunE: runPolicyCreate,
}

func init() {
	f := policyCreateCmd.Flags()
	f.StringVarP(&policyFlags.file, "file", "f", "", "Policy YAML file (required)")
	f.StringVar(&policyFlags.as, "as", "", "Administrator user name the policy is created by (required)")
	_ = policyCreateCmd.MarkFlagRequired("file")
	_ = policyCreateCmd.MarkFlagRequired("as")
	policyCmd.AddCommand(policyCreateCmd)
}

type policyFile struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Categories  []any  `yaml:"categories"`
	Rules       []any  `yaml:"rules"`
}

// request converts the YAML document into the JSON-shaped create request.
func (p policyFile) request() (models.CreatePolicyRequest, error) {
	if p.Categories == nil {
		p.Categories = []any{}
	}
	if p.Rules == nil {
		p.Rules = []any{}
	}
	categories, err := json.Marshal(p.Categories)
	if err != nil {
		return models.CreatePolicyRequest{}, fmt.Errorf("categories: %w", err)
	}
	rules, err := json.Marshal(p.Rules)
	if err != nil {
		return models.CreatePolicyRequest{}, fmt.Errorf("rules: %w", err)
	}
	return models.CreatePolicyRequest{
		Name:        p.Name,
		Description: p.Description,
		Categories:  categories,
		Rules:       rules,
	}, nil
}

func readPolicyFile(path string) (models.CreatePolicyRequest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return models.CreatePolicyRequest{}, fmt.Errorf("read policy file: %w", err)
	}
	var pf policyFile
	if err := yaml.Unmarshal(raw, &pf); err != nil {
		return models.CreatePolicyRequest{}, fmt.Errorf("parse policy file: %w", err)
	}
	return pf.request()
}

func runPolicyCreate(cmd *cobra.Command, _ []string) error {
	req, err := readPolicyFile(policyFlags.file)
	if err != nil {
		return err
	}
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	user, err := a.users.FindByUserName(ctx, policyFlags.as)
	if err != nil {
		return fmt.Errorf("look up %s: %w", policyFlags.as, err)
	}
	principal, err := a.identity.Principal(ctx, user.ID)
	if err != nil {
		return err
	}
	policy, err := a.policies.CreatePolicy(ctx, principal, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s)\n", policy.PolicyID, policy.Name)
	return nil
}
