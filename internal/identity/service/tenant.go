package service

import (
	"casekeeper/internal/identity/models"
	"casekeeper/internal/platform/config"
)

// TenantResolver picks the organization a user presents to the ledger.
// District mapping wins; forensics officers without a mapped district use the
// forensics org; everyone else uses the default.
type TenantResolver struct {
	byDistrict map[string]string
	fallback   string
	forensics  string
}

func NewTenantResolver(cfg config.TenantConfig) TenantResolver {
	return TenantResolver{byDistrict: cfg.ByDistrict, fallback: cfg.Default, forensics: cfg.Forensics}
}

func (r TenantResolver) Resolve(u *models.User) string {
	if org, ok := r.byDistrict[u.Jurisdiction.District]; ok && u.Jurisdiction.District != "" {
		return org
	}
	if u.Role == models.RoleForensics && r.forensics != "" {
		return r.forensics
	}
	return r.fallback
}
