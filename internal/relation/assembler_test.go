package relation

import (
	"testing"

	"go.uber.org/zap"

	"spendgraph/internal/config"
	"spendgraph/internal/entity"
	"spendgraph/pkg/domain"
)

func hierarchyConfig() *config.Config {
	return &config.Config{
		Entities: map[domain.EntityType]*config.Entity{
			domain.EntityAgency: {
				Type:       domain.EntityAgency,
				KeyFields:  []string{"code"},
				Processing: config.EntityProcessing{Enabled: true, Order: 1},
				FieldMappings: map[string]domain.FieldMapping{
					"code": {Kind: domain.MappingDirect, Source: "agency_code"},
					"name": {Kind: domain.MappingDirect, Source: "agency_name"},
				},
				Relationships: []domain.Relationship{{
					Source:      domain.EntityAgency,
					Target:      domain.EntitySubAgency,
					Kind:        domain.RelationshipHierarchical,
					Cardinality: domain.CardinalityOneToMany,
					KeySources:  []string{"agency_code", "sub_agency_code"},
				}},
			},
			domain.EntitySubAgency: {
				Type:       domain.EntitySubAgency,
				KeyFields:  []string{"agency_code", "code"},
				Processing: config.EntityProcessing{Enabled: true, Order: 2},
				FieldMappings: map[string]domain.FieldMapping{
					"agency_code": {Kind: domain.MappingDirect, Source: "agency_code"},
					"code":        {Kind: domain.MappingDirect, Source: "sub_agency_code"},
				},
				Relationships: []domain.Relationship{{
					Source:      domain.EntitySubAgency,
					Target:      domain.EntityAgency,
					Kind:        domain.RelationshipHierarchical,
					Cardinality: domain.CardinalityManyToOne,
				}},
			},
		},
	}
}

func buildStores(t *testing.T, cfg *config.Config) map[domain.EntityType]*entity.Store {
	t.Helper()
	stores := make(map[domain.EntityType]*entity.Store)
	for typ, entityCfg := range cfg.Entities {
		stores[typ] = entity.NewStore(entityCfg, nil, zap.NewNop())
	}
	return stores
}

func TestWireHierarchy(t *testing.T) {
	cfg := hierarchyConfig()
	stores := buildStores(t, cfg)
	assembler := NewAssembler(cfg, stores)

	rec := domain.Record{"agency_code": "015", "agency_name": "GSA", "sub_agency_code": "1544"}
	keys := make(map[domain.EntityType]string)
	for _, typ := range []domain.EntityType{domain.EntityAgency, domain.EntitySubAgency} {
		key, ok := stores[typ].ProcessRecord(rec)
		if !ok {
			t.Fatalf("%s skipped", typ)
		}
		keys[typ] = key
		assembler.Wire(typ, rec, keys)
	}

	agency, _ := stores[domain.EntityAgency].Get("015")
	subKeys, _ := agency["sub_agencies"].([]string)
	if len(subKeys) != 1 || subKeys[0] != "015:1544" {
		t.Fatalf("sub_agencies=%v", subKeys)
	}

	sub, _ := stores[domain.EntitySubAgency].Get("015:1544")
	if sub["agency_key"] != "015" {
		t.Fatalf("agency_key=%v", sub["agency_key"])
	}
}

func TestWireIdempotentAcrossReplays(t *testing.T) {
	cfg := hierarchyConfig()
	stores := buildStores(t, cfg)
	assembler := NewAssembler(cfg, stores)

	rec := domain.Record{"agency_code": "015", "agency_name": "GSA", "sub_agency_code": "1544"}
	for i := 0; i < 3; i++ {
		keys := make(map[domain.EntityType]string)
		for _, typ := range []domain.EntityType{domain.EntityAgency, domain.EntitySubAgency} {
			key, _ := stores[typ].ProcessRecord(rec)
			keys[typ] = key
			assembler.Wire(typ, rec, keys)
		}
	}

	agency, _ := stores[domain.EntityAgency].Get("015")
	subKeys, _ := agency["sub_agencies"].([]string)
	if len(subKeys) != 1 {
		t.Fatalf("replay duplicated collection entries: %v", subKeys)
	}
}

func TestWirePartialKeyStillLinks(t *testing.T) {
	cfg := hierarchyConfig()
	stores := buildStores(t, cfg)
	assembler := NewAssembler(cfg, stores)

	// Sub-agency code missing: the partial key "015:" is still valid and must
	// link alongside its fully-keyed sibling.
	for _, rec := range []domain.Record{
		{"agency_code": "015", "agency_name": "GSA", "sub_agency_code": ""},
		{"agency_code": "015", "agency_name": "GSA", "sub_agency_code": "1544"},
	} {
		keys := make(map[domain.EntityType]string)
		for _, typ := range []domain.EntityType{domain.EntityAgency, domain.EntitySubAgency} {
			if key, ok := stores[typ].ProcessRecord(rec); ok {
				keys[typ] = key
			}
			assembler.Wire(typ, rec, keys)
		}
	}

	agency, _ := stores[domain.EntityAgency].Get("015")
	subKeys, _ := agency["sub_agencies"].([]string)
	if len(subKeys) != 2 || subKeys[0] != "015:" || subKeys[1] != "015:1544" {
		t.Fatalf("sub_agencies=%v", subKeys)
	}
}

// sharedKeySpaceConfig keys a single agency type on both the agency and
// sub-agency codes, so department-level ("015:") and sub-tier ("015:1544")
// instances live in one store. The hierarchy addresses the parent through
// source_key_sources instead of the current record's own key.
func sharedKeySpaceConfig() *config.Config {
	return &config.Config{
		Entities: map[domain.EntityType]*config.Entity{
			domain.EntityAgency: {
				Type:       domain.EntityAgency,
				KeyFields:  []string{"agency_code", "sub_agency_code"},
				Processing: config.EntityProcessing{Enabled: true, Order: 1},
				FieldMappings: map[string]domain.FieldMapping{
					"agency_code":     {Kind: domain.MappingDirect, Source: "agency_code"},
					"sub_agency_code": {Kind: domain.MappingDirect, Source: "sub_agency_code"},
					"name": {
						Kind:    domain.MappingMultiSource,
						Sources: []string{"awarding_sub_agency_name", "awarding_agency_name"},
					},
				},
				Relationships: []domain.Relationship{{
					Source:           domain.EntityAgency,
					Target:           domain.EntitySubAgency,
					Kind:             domain.RelationshipHierarchical,
					Cardinality:      domain.CardinalityOneToMany,
					KeySources:       []string{"agency_code", "sub_agency_code"},
					SourceKeySources: []string{"agency_code"},
				}},
			},
		},
	}
}

func TestWireParentLevelInSharedKeySpace(t *testing.T) {
	cfg := sharedKeySpaceConfig()
	stores := buildStores(t, cfg)
	assembler := NewAssembler(cfg, stores)

	records := []domain.Record{
		{"agency_code": "015", "sub_agency_code": "", "awarding_agency_name": "DOJ"},
		{"agency_code": "015", "sub_agency_code": "1544", "awarding_sub_agency_name": "USMS"},
	}
	for _, rec := range records {
		keys := make(map[domain.EntityType]string)
		if key, ok := stores[domain.EntityAgency].ProcessRecord(rec); ok {
			keys[domain.EntityAgency] = key
		}
		assembler.Wire(domain.EntityAgency, rec, keys)
	}

	if got := stores[domain.EntityAgency].Len(); got != 2 {
		t.Fatalf("instances=%d want 2", got)
	}
	parent, ok := stores[domain.EntityAgency].Get("015:")
	if !ok {
		t.Fatalf("parent 015: missing")
	}
	subKeys, _ := parent["sub_agencies"].([]string)
	if len(subKeys) != 1 || subKeys[0] != "015:1544" {
		t.Fatalf("sub_agencies on 015: = %v, want [015:1544]", subKeys)
	}

	// The sub-tier record resolves its parent key, not its own: the child
	// carries no collection and the parent never contains itself.
	child, ok := stores[domain.EntityAgency].Get("015:1544")
	if !ok {
		t.Fatalf("child 015:1544 missing")
	}
	if _, linked := child["sub_agencies"]; linked {
		t.Fatalf("child self-linked: %v", child["sub_agencies"])
	}
}

func TestWireSkipsWhenSourceSkipped(t *testing.T) {
	cfg := hierarchyConfig()
	stores := buildStores(t, cfg)
	assembler := NewAssembler(cfg, stores)

	rec := domain.Record{"agency_code": "", "agency_name": "", "sub_agency_code": ""}
	keys := make(map[domain.EntityType]string)
	assembler.Wire(domain.EntityAgency, rec, keys)

	if stores[domain.EntityAgency].Len() != 0 {
		t.Fatalf("wiring created instances")
	}
}

func TestCollectionName(t *testing.T) {
	cases := []struct {
		rel  domain.Relationship
		want string
	}{
		{domain.Relationship{Target: domain.EntitySubAgency}, "sub_agencies"},
		{domain.Relationship{Target: domain.EntityAgency}, "agencies"},
		{domain.Relationship{Target: domain.EntityOffice}, "offices"},
		{domain.Relationship{Target: domain.EntityOffice, Name: "awarding_offices"}, "awarding_offices"},
	}
	for _, c := range cases {
		if got := CollectionName(c.rel); got != c.want {
			t.Fatalf("CollectionName(%s)=%q want %q", c.rel.Target, got, c.want)
		}
	}
}

func TestReferenceFieldName(t *testing.T) {
	if got := ReferenceFieldName(domain.Relationship{Target: domain.EntityAgency}); got != "agency_key" {
		t.Fatalf("got %q", got)
	}
	if got := ReferenceFieldName(domain.Relationship{Target: domain.EntityAgency, Name: "funding_agency"}); got != "funding_agency" {
		t.Fatalf("got %q", got)
	}
}

func TestEmbedChildren(t *testing.T) {
	parent := domain.Snapshot{
		Entities: map[string]domain.Instance{
			"015": {"code": "015", "sub_agencies": []string{"015:1544", "015:9999"}},
		},
	}
	children := domain.Snapshot{
		Entities: map[string]domain.Instance{
			"015:1544": {"code": "1544", "name": "FAS"},
		},
	}

	embedded := EmbedChildren(parent, children, "sub_agencies")
	got, _ := embedded.Entities["015"]["sub_agencies"].([]any)
	if len(got) != 2 {
		t.Fatalf("sub_agencies=%v", got)
	}
	payload, ok := got[0].(map[string]any)
	if !ok || payload["name"] != "FAS" {
		t.Fatalf("embedded payload=%v", got[0])
	}
	if got[1] != "015:9999" {
		t.Fatalf("unmatched key must survive as string, got %v", got[1])
	}

	// The source snapshot stays key-valued.
	orig, _ := parent.Entities["015"]["sub_agencies"].([]string)
	if len(orig) != 2 {
		t.Fatalf("parent snapshot mutated: %v", orig)
	}
}
