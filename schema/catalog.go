package schema

import (
	"strings"
	"sync"
)

func req(name string, kind Kind) Field { return Field{Name: name, Kind: kind, Required: true} }
func opt(name string, kind Kind) Field { return Field{Name: name, Kind: kind} }
func ref(name string) Field { return Field{Name: name, Kind: Long} }

func labelled(name, collection string, extra ...Field) *Entity {
	return &Entity{
		Name:       name,
		Collection: collection,
		Fields:     append([]Field{req("libelle", String)}, extra...),
	}
}

func managed(name, collection string, extra ...Field) *Entity {
	return labelled(name, collection, append([]Field{
		req("responsable", String),
		req("contact", String),
	}, extra...)...)
}

// unreferenced lets e be listed by "<entity>-is-null": rows that no field of
// entity points at.
func unreferenced(e *Entity, entity, field string) *Entity {
	e.BackRefs = append(e.BackRefs, BackRef{
		Filter: strings.ToLower(entity) + "-is-null",
		Entity: entity,
		Field:  field,
	})
	return e
}

var (
	catalogOnce sync.Once
	catalog     []*Entity
	byName      map[string]*Entity
	byColl      map[string]*Entity
)

func build() []*Entity {
	return []*Entity{
		unreferenced(labelled("Annee", "annees"), "Prevision", "refanneeId"),
		unreferenced(managed("Centre", "centres", ref("centreregroupementId")), "Prevision", "centreId"),
		managed("CentreRegroupement", "centre-regroupements", ref("directionregionaleId")),
		labelled("Commune", "communes", ref("provinceId"), ref("typecommuneId")),
		managed("DirectionRegionale", "direction-regionales"),
		{
			Name:       "FicheSuiviOuvrage",
			Collection: "fiche-suivi-ouvrages",
			Fields: []Field{
				req("prjAppuis", String),
				req("nomBenef", String),
				req("prenomBenef", String),
				req("professionBenef", String),
				req("nbUsagers", Long),
				req("contacts", String),
				req("longitude", Float),
				req("latitude", Float),
				req("dateRemiseDevis", Instant),
				req("dateDebutTravaux", Instant),
				req("dateFinTravaux", Instant),
				opt("rue", String),
				opt("porte", String),
				req("coutMenage", String),
				req("subvOnea", Integer),
				req("subvProjet", Integer),
				req("autreSubv", Integer),
				req("toles", Integer),
				req("animateur", String),
				req("superviseur", String),
				req("controleur", String),
				ref("parcelleId"),
				ref("previsionId"),
				ref("natureouvrageId"),
				ref("typehabitationId"),
				ref("sourceapprovepId"),
				ref("modeevacuationeauuseeId"),
				ref("modeevacexcretaId"),
				ref("maconId"),
				ref("prefabricantId"),
			},
		},
		labelled("Localite", "localites", ref("communeId")),
		labelled("Lot", "lots", ref("sectionId")),
		labelled("Macon", "macons"),
		labelled("ModeEvacExcreta", "mode-evac-excretas"),
		labelled("ModeEvacuationEauUsee", "mode-evacuation-eau-usees"),
		labelled("NatureOuvrage", "nature-ouvrages"),
		labelled("Parcelle", "parcelles", ref("lotId")),
		labelled("Prefabricant", "prefabricants"),
		{
			Name:       "Prevision",
			Collection: "previsions",
			Fields: []Field{
				req("nbLatrine", Integer),
				req("nbPuisard", Integer),
				req("nbPublic", Integer),
				req("nbScolaire", Integer),
				ref("centreId"),
				ref("refanneeId"),
			},
		},
		labelled("Province", "provinces", ref("regionId")),
		labelled("Region", "regions"),
		labelled("Secteur", "secteurs", ref("localiteId")),
		labelled("Section", "sections", ref("secteurId")),
		labelled("SourceApprovEp", "source-approv-eps"),
		labelled("TypeCommune", "type-communes"),
		labelled("TypeHabitation", "type-habitations"),
	}
}

func load() {
	catalog = build()
	byName = make(map[string]*Entity, len(catalog))
	byColl = make(map[string]*Entity, len(catalog))
	for _, e := range catalog {
		byName[e.Name] = e
		byColl[e.Collection] = e
	}
}

// Catalog returns every entity descriptor, sorted by name. Callers must not
// modify the descriptors.
func Catalog() []*Entity {
	catalogOnce.Do(load)
	return catalog
}

// Lookup finds an entity by its REST collection name.
func Lookup(collection string) (*Entity, bool) {
	catalogOnce.Do(load)
	e, ok := byColl[collection]
	return e, ok
}

// ByName finds an entity by its type name.
func ByName(name string) (*Entity, bool) {
	catalogOnce.Do(load)
	e, ok := byName[name]
	return e, ok
}
