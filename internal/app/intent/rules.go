package intent

// Rules is the keyword table the classifier matches against. Entries are
// compared after lower-casing and accent folding, so "connectés" and
// "CONNECTES" both hit "connectes".
type Rules struct {
	// Quantifiers make a question about the whole fleet.
	Quantifiers []string
	// Connectivity words make a question about connection status.
	Connectivity []string
	// SensorNouns introduce a sensor id: "capteur c1abc2".
	SensorNouns []string
	// IDFillers may sit between a noun and the id: "capteur numéro 12".
	IDFillers []string
	// NotIDs can follow a noun without being an id: "le capteur est-il".
	NotIDs []string
}

// DefaultRules covers French and English phrasings.
var DefaultRules = Rules{
	Quantifiers: []string{
		"tous", "toutes", "tout", "chaque", "ensemble", "aucun", "aucune",
		"quel", "quelle", "quels", "quelles", "lequel", "lesquels", "combien",
		"all", "every", "each", "any", "which", "what", "many",
	},
	Connectivity: []string{
		"connecte", "connectes", "connectee", "connectees", "connexion", "connectivite",
		"deconnecte", "deconnectes", "deconnectee", "deconnectees",
		"ligne", "fonctionne", "fonctionnent", "marche", "marchent", "panne",
		"actif", "actifs", "active", "actives", "inactif", "inactifs",
		"statut", "etat", "joignable", "joignables",
		"connected", "disconnected", "connection", "connectivity",
		"online", "offline", "reachable", "unreachable", "status", "alive", "stale",
		"down", "working",
	},
	SensorNouns: []string{"capteur", "sonde", "sensor", "device"},
	IDFillers:   []string{"numero", "num", "no", "n", "nr", "id", "number", "identifiant"},
	NotIDs: []string{
		"est", "sont", "etait", "il", "elle", "ils", "elles", "t",
		"le", "la", "les", "l", "de", "du", "des", "d", "qui", "que", "en", "et", "ou",
		"is", "are", "was", "were", "the", "of", "and", "or", "that", "still",
	},
}

type ruleSet struct {
	quantifiers  map[string]struct{}
	connectivity map[string]struct{}
	nouns        map[string]struct{}
	fillers      map[string]struct{}
	notIDs       map[string]struct{}
}

func compile(r Rules) ruleSet {
	rs := ruleSet{
		quantifiers:  toSet(r.Quantifiers),
		connectivity: toSet(r.Connectivity),
		nouns:        toSet(r.SensorNouns),
		fillers:      toSet(r.IDFillers),
		notIDs:       toSet(r.NotIDs),
	}
	// Keywords are never ids either.
	for k := range rs.quantifiers {
		rs.notIDs[k] = struct{}{}
	}
	for k := range rs.connectivity {
		rs.notIDs[k] = struct{}{}
	}
	for k := range rs.nouns {
		rs.notIDs[k] = struct{}{}
	}
	return rs
}

func toSet(words []string) map[string]struct{} {
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		out[fold(w)] = struct{}{}
	}
	return out
}
