package catalog

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"

	"github.com/jward/modelstore/internal/store"
)

// Catalog identifiers and vocabulary.
const (
	LicenseNamespace = "https://spdx.org/licenses/"
	ListedLicense    = "ListedLicense"
	PropNamespace    = "https://spdx.org/rdf/3.0.1/terms/"
	CoreNamespace    = PropNamespace + "Core/"
	LicenseTermsNS   = PropNamespace + "ExpandedLicensing/"
	DefaultSpec      = "3.0.1"
)

// Properties written for each imported license.
var (
	PropName          = store.Prop(CoreNamespace, "name")
	PropLicenseID     = store.Prop(LicenseTermsNS, "licenseId")
	PropOsiApproved   = store.Prop(LicenseTermsNS, "isOsiApproved")
	PropDeprecated    = store.Prop(LicenseTermsNS, "isDeprecatedLicenseId")
	PropSeeAlso       = store.Prop(LicenseTermsNS, "seeAlso")
	PropReferenceHTML = store.Prop(LicenseTermsNS, "reference")
)

// LicenseList is the published license list document.
type LicenseList struct {
	Version     string         `json:"licenseListVersion"`
	ReleaseDate string         `json:"releaseDate"`
	Licenses    []LicenseEntry `json:"licenses"`
}

// LicenseEntry is one license in a LicenseList.
type LicenseEntry struct {
	LicenseID    string   `json:"licenseId"`
	Name         string   `json:"name"`
	Reference    string   `json:"reference"`
	IsOsi        bool     `json:"isOsiApproved"`
	IsDeprecated bool     `json:"isDeprecatedLicenseId"`
	SeeAlso      []string `json:"seeAlso"`
}

// ItemID returns the catalog identifier of a license entry.
func (e LicenseEntry) ItemID() string {
	return LicenseNamespace + e.LicenseID
}

// ImportStats summarizes an Import.
type ImportStats struct {
	Version  string
	Licenses int
	Replaced int
}

// Import reads a license list document from r and loads every entry into
// the catalog in one transaction. Existing entries with the same identifier
// are replaced.
func (s *Store) Import(r io.Reader) (ImportStats, error) {
	var list LicenseList
	if err := json.NewDecoder(r).Decode(&list); err != nil {
		return ImportStats{}, fmt.Errorf("decode license list: %w", err)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return ImportStats{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stats := ImportStats{Version: list.Version}
	for _, e := range list.Licenses {
		if e.LicenseID == "" {
			continue
		}
		replaced, err := insertLicense(tx, e)
		if err != nil {
			return ImportStats{}, err
		}
		stats.Licenses++
		if replaced {
			stats.Replaced++
		}
	}

	if _, err := tx.Exec(
		"INSERT INTO metadata (key, value) VALUES ('license_list_version', ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		list.Version,
	); err != nil {
		return ImportStats{}, fmt.Errorf("record version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return ImportStats{}, fmt.Errorf("commit import: %w", err)
	}
	return stats, nil
}

func insertLicense(tx *sql.Tx, e LicenseEntry) (bool, error) {
	id := e.ItemID()
	res, err := tx.Exec("DELETE FROM items WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("replace %s: %w", id, err)
	}
	n, _ := res.RowsAffected()

	if _, err := tx.Exec(
		"INSERT INTO items (id, type, spec_version) VALUES (?, ?, ?)",
		id, ListedLicense, DefaultSpec,
	); err != nil {
		return false, fmt.Errorf("insert item %s: %w", id, err)
	}

	scalars := []scalarRow{
		{PropLicenseID, e.LicenseID},
		{PropName, e.Name},
		{PropOsiApproved, e.IsOsi},
		{PropDeprecated, e.IsDeprecated},
	}
	if e.Reference != "" {
		scalars = append(scalars, scalarRow{PropReferenceHTML, e.Reference})
	}
	for _, sc := range scalars {
		if err := insertProperty(tx, id, sc.prop, -1, sc.v); err != nil {
			return false, err
		}
	}
	for i, url := range e.SeeAlso {
		if err := insertProperty(tx, id, PropSeeAlso, i, url); err != nil {
			return false, err
		}
	}
	return n > 0, nil
}

type scalarRow struct {
	prop store.PropertyDescriptor
	v    store.Value
}

func insertProperty(tx *sql.Tx, id string, prop store.PropertyDescriptor, ordinal int, v store.Value) error {
	kind, text, err := store.EncodeValue(v)
	if err != nil {
		return fmt.Errorf("encode %s %s: %w", id, prop, err)
	}
	var refType, refSpec string
	if ref, ok := v.(store.TypedRef); ok {
		refType, refSpec = ref.Type, ref.SpecVersion
	}
	if _, err := tx.Exec(
		`INSERT INTO properties (item_id, namespace, name, ordinal, kind, value, ref_type, ref_spec)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, prop.Namespace, prop.Name, ordinal, kind, text, refType, refSpec,
	); err != nil {
		return fmt.Errorf("insert property %s %s[%d]: %w", id, prop, ordinal, err)
	}
	return nil
}

// ListedVersion returns the license list version recorded by the last
// Import, or "" if nothing was imported.
func (s *Store) ListedVersion() (string, error) {
	return s.GetMetadata("license_list_version")
}
