package model

import (
	"github.com/jward/modelstore/internal/store"
)

// SpecVersion is the model version new nodes are stamped with.
const SpecVersion = "3.0.1"

// Property namespaces.
const (
	CoreNS       = "https://spdx.org/rdf/3.0.1/terms/Core/"
	SoftwareNS   = "https://spdx.org/rdf/3.0.1/terms/Software/"
	LicensingNS  = "https://spdx.org/rdf/3.0.1/terms/SimpleLicensing/"
	ExpandedLiNS = "https://spdx.org/rdf/3.0.1/terms/ExpandedLicensing/"
)

// Common properties.
var (
	PropName             = store.Prop(CoreNS, "name")
	PropComment          = store.Prop(CoreNS, "comment")
	PropCreationInfo     = store.Prop(CoreNS, "creationInfo")
	PropCreatedBy        = store.Prop(CoreNS, "createdBy")
	PropVerifiedUsing    = store.Prop(CoreNS, "verifiedUsing")
	PropExternalRef      = store.Prop(CoreNS, "externalRef")
	PropElement          = store.Prop(CoreNS, "element")
	PropRootElement      = store.Prop(CoreNS, "rootElement")
	PropFrom             = store.Prop(CoreNS, "from")
	PropTo               = store.Prop(CoreNS, "to")
	PropRelationshipType = store.Prop(CoreNS, "relationshipType")
	PropAlgorithm        = store.Prop(CoreNS, "algorithm")
	PropHashValue        = store.Prop(CoreNS, "hashValue")
	PropSubject          = store.Prop(CoreNS, "subject")
	PropStatement        = store.Prop(CoreNS, "statement")
	PropPackageVersion   = store.Prop(SoftwareNS, "packageVersion")
	PropDownloadLocation = store.Prop(SoftwareNS, "downloadLocation")
	PropLicenseText      = store.Prop(LicensingNS, "licenseText")
)

// Relationship type individuals.
var (
	RelContains     = store.Individual{URI: CoreNS + "RelationshipType/contains"}
	RelDependsOn    = store.Individual{URI: CoreNS + "RelationshipType/dependsOn"}
	RelDescribes    = store.Individual{URI: CoreNS + "RelationshipType/describes"}
	RelHasDeclared  = store.Individual{URI: CoreNS + "RelationshipType/hasDeclaredLicense"}
	RelHasConcluded = store.Individual{URI: CoreNS + "RelationshipType/hasConcludedLicense"}
)

// coreTypes is the built-in type hierarchy.
var coreTypes = []TypeInfo{
	{Name: "Element"},
	{Name: "Artifact", Parents: []string{"Element"}},
	{Name: "Package", Parents: []string{"Artifact"}},
	{Name: "File", Parents: []string{"Artifact"}},
	{Name: "Snippet", Parents: []string{"Artifact"}},
	{Name: "Relationship", Parents: []string{"Element"}, New: newRelationship},
	{Name: "Annotation", Parents: []string{"Element"}},
	{Name: "ElementCollection", Parents: []string{"Element"}},
	{Name: "SpdxDocument", Parents: []string{"ElementCollection"}},
	{Name: "Agent", Parents: []string{"Element"}},
	{Name: "Person", Parents: []string{"Agent"}},
	{Name: "Organization", Parents: []string{"Agent"}},
	{Name: "Tool", Parents: []string{"Element"}},
	{Name: "AnyLicenseInfo", Parents: []string{"Element"}},
	{Name: "License", Parents: []string{"AnyLicenseInfo"}},
	{Name: "ListedLicense", Parents: []string{"License"}},
	{Name: "CustomLicense", Parents: []string{"License"}},
	{Name: "IntegrityMethod"},
	{Name: "Hash", Parents: []string{"IntegrityMethod"}},
	{Name: "ExternalRef"},
	{Name: "ExternalIdentifier"},
	{Name: "CreationInfo"},
}

// DefaultRegistry returns a registry with the built-in types.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, info := range coreTypes {
		if err := r.Register(info); err != nil {
			// coreTypes is static; a duplicate is a programming error.
			panic(err)
		}
	}
	return r
}

// Relationship is the model object for Relationship nodes.
type Relationship struct {
	*Object
}

func newRelationship(ds store.DataStore, ref store.TypedRef) (store.Referable, error) {
	return &Relationship{Object: NewObject(ds, ref)}, nil
}

// Link sets the relationship's source and type and adds each target.
func (r *Relationship) Link(from store.Referable, relType store.Individual, to ...store.Referable) error {
	if err := r.Set(PropFrom, from); err != nil {
		return err
	}
	if err := r.Set(PropRelationshipType, relType); err != nil {
		return err
	}
	for _, t := range to {
		if err := r.Add(PropTo, t); err != nil {
			return err
		}
	}
	return nil
}

// From returns the source reference, if set.
func (r *Relationship) From() (store.TypedRef, bool, error) {
	v, ok, err := r.Get(PropFrom)
	if err != nil || !ok {
		return store.TypedRef{}, false, err
	}
	ref, _ := v.(store.TypedRef)
	return ref, true, nil
}

// To returns the target references in insertion order.
func (r *Relationship) To() ([]store.TypedRef, error) {
	values, err := r.Collection(PropTo).Values()
	if err != nil {
		return nil, err
	}
	out := make([]store.TypedRef, 0, len(values))
	for _, v := range values {
		if ref, ok := v.(store.TypedRef); ok {
			out = append(out, ref)
		}
	}
	return out, nil
}
