package store

import "github.com/gradnja/stroski-api/internal/domain"

type defaultPhase struct {
	name string
	subs []string
}

// defaultTaxonomy is seeded into an empty dataset, from site preparation through landscaping
var defaultTaxonomy = []defaultPhase{
	{"Priprava", []string{"Načrtovanje", "Dovoljenja"}},
	{"Zemeljska dela", []string{"Izkop", "Nasipavanje"}},
	{"Temelji", []string{"Temeljni pasovi", "Hidroizolacija"}},
	{"Plošča", []string{"Opaž", "Betoniranje"}},
	{"Zidava", []string{"Nosilne stene", "Predelne stene"}},
	{"Streha", []string{"Konstrukcija", "Kritina"}},
	{"Fasada", []string{"Toplotna izolacija", "Zaključni sloj"}},
	{"Okna/Vrata", []string{"Okna", "Vrata"}},
	{"Instalacije", []string{"Elektrika", "Voda", "Ogrevanje"}},
	{"Estrihi", []string{"Podlaga", "Estrih"}},
	{"Zaključna dela", []string{"Pleskanje", "Talne obloge"}},
	{"Zunanja ureditev", []string{"Dovoz", "Ograja"}},
}

// seedPhases installs the default global taxonomy when st has no phases.
// It reports whether anything was added.
func seedPhases(st *domain.State, newID func() string) bool {
	if len(st.Phases) > 0 {
		return false
	}

	phases := make([]domain.Phase, 0, len(defaultTaxonomy))
	var subphases []domain.Subphase
	for idx, def := range defaultTaxonomy {
		phaseID := newID()
		phases = append(phases, domain.Phase{ID: phaseID, Name: def.name, OrderNo: idx + 1})
		for subIdx, name := range def.subs {
			subphases = append(subphases, domain.Subphase{
				ID:          newID(),
				MainPhaseID: phaseID,
				Name:        name,
				OrderNo:     subIdx + 1,
			})
		}
	}

	st.Phases = phases
	st.Subphases = subphases
	return true
}
