package db

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"gopkg.in/yaml.v3"

	"workforce/internal/domain/compliance"
	"workforce/internal/platform/querier"
)

// Catalog is the YAML seed format for compliance requirements.
type Catalog struct {
	Requirements []CatalogEntry `yaml:"requirements"`
}

type CatalogEntry struct {
	Code              string       `yaml:"code"`
	Name              string       `yaml:"name"`
	Category          string       `yaml:"category"`
	Criticality       string       `yaml:"criticality"`
	WarningWindowDays *int         `yaml:"warningWindowDays"`
	AppliesTo         CatalogScope `yaml:"appliesTo"`
}

type CatalogScope struct {
	Global bool     `yaml:"global"`
	Lines  []string `yaml:"lines"`
	Roles  []string `yaml:"roles"`
}

func LoadCatalogFile(path string) (Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return Catalog{}, goerr.Wrap(err, "failed to open catalog", goerr.V("path", path))
	}
	defer f.Close()
	return ParseCatalog(f)
}

func ParseCatalog(r io.Reader) (Catalog, error) {
	var catalog Catalog
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&catalog); err != nil && err != io.EOF {
		return Catalog{}, goerr.Wrap(err, "failed to decode catalog")
	}

	seen := map[string]bool{}
	for i, entry := range catalog.Requirements {
		code := strings.TrimSpace(entry.Code)
		if code == "" {
			return Catalog{}, goerr.New("catalog entry has no code", goerr.V("index", i))
		}
		if seen[strings.ToUpper(code)] {
			return Catalog{}, goerr.Wrap(compliance.ErrDuplicateCode, "duplicate catalog code", goerr.V("code", code))
		}
		seen[strings.ToUpper(code)] = true
		if _, err := compliance.ParseCategory(entry.Category); err != nil {
			return Catalog{}, goerr.Wrap(err, "invalid catalog entry", goerr.V("code", code))
		}
		if entry.WarningWindowDays != nil && *entry.WarningWindowDays < 0 {
			return Catalog{}, goerr.Wrap(compliance.ErrInvalidWarningWindow, "invalid catalog entry", goerr.V("code", code))
		}
		catalog.Requirements[i].Code = code
	}
	return catalog, nil
}

// Requirement converts the entry into a catalog requirement plus its applicability rows.
func (e CatalogEntry) Requirement() (compliance.Requirement, []compliance.Applicability) {
	category, _ := compliance.ParseCategory(e.Category)
	criticality := strings.ToLower(strings.TrimSpace(e.Criticality))
	if criticality == "" {
		criticality = compliance.CriticalityNormal
	}
	req := compliance.Requirement{
		Code:              e.Code,
		Name:              e.Name,
		Category:          category,
		Criticality:       criticality,
		Active:            true,
		WarningWindowDays: e.WarningWindowDays,
	}
	if req.Name == "" {
		req.Name = e.Code
	}

	var rows []compliance.Applicability
	if e.AppliesTo.Global {
		rows = append(rows, compliance.Applicability{AppliesGlobally: true})
	}
	for _, line := range e.AppliesTo.Lines {
		rows = append(rows, compliance.Applicability{AppliesToLine: strings.TrimSpace(line)})
	}
	for _, role := range e.AppliesTo.Roles {
		rows = append(rows, compliance.Applicability{AppliesToRole: strings.TrimSpace(role)})
	}
	return req, rows
}

// SeedCatalog inserts catalog entries that the tenant does not have yet. Existing codes are
// left alone so edits made through the API survive restarts.
func SeedCatalog(ctx context.Context, q querier.Querier, tenantID string, catalog Catalog) (int, error) {
	inserted := 0
	for _, entry := range catalog.Requirements {
		req, rows := entry.Requirement()
		var id string
		err := q.QueryRow(ctx, `
      INSERT INTO compliance_catalog (tenant_id, code, name, category, criticality, active, warning_window_days)
      VALUES ($1,$2,$3,$4,$5,true,$6)
      ON CONFLICT (tenant_id, code) DO NOTHING
      RETURNING id
    `, tenantID, req.Code, req.Name, string(req.Category), req.Criticality, req.WarningWindowDays).Scan(&id)
		if err != nil {
			if isNoRows(err) {
				continue
			}
			return inserted, goerr.Wrap(err, "failed to seed requirement", goerr.V("code", req.Code))
		}
		for _, row := range rows {
			if _, err := q.Exec(ctx, `
        INSERT INTO compliance_requirement_applicability (tenant_id, requirement_id, applies_globally, applies_to_line, applies_to_role)
        VALUES ($1,$2,$3,$4,$5)
      `, tenantID, id, row.AppliesGlobally, nullIfEmpty(row.AppliesToLine), nullIfEmpty(row.AppliesToRole)); err != nil {
				return inserted, goerr.Wrap(err, "failed to seed applicability", goerr.V("code", req.Code))
			}
		}
		inserted++
	}
	return inserted, nil
}

func nullIfEmpty(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}
