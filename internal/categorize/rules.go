package categorize

// Confidence levels.
const (
	High   = 0.8
	Medium = 0.6
	Low    = 0.4
)

type keywordRule struct {
	Category string
	Keywords []string
}

// keywordRules is ordered: on equal match counts the first category wins.
var keywordRules = []keywordRule{
	{"Alimentation", []string{
		"carrefour", "leclerc", "auchan", "casino", "monoprix", "franprix",
		"lidl", "aldi", "bio", "boulangerie", "boucherie", "poissonnerie",
		"restaurant", "mcdonalds", "kfc", "quick", "subway", "pizza",
		"café", "bar", "brasserie", "epicerie", "supermarché", "hypermarché",
		"alimentation", "courses", "nourriture", "repas",
	}},
	{"Transport", []string{
		"essence", "gazole", "carburant", "station", "total", "shell", "bp",
		"esso", "agip", "péage", "autoroute", "parking", "sncf", "ratp",
		"métro", "bus", "tram", "taxi", "uber", "transport", "navigo",
		"ticket", "abonnement", "train", "avion", "vol",
	}},
	{"Loyer", []string{
		"loyer", "bail", "propriétaire", "agence", "immobilier", "location",
		"logement", "appartement", "maison", "studio", "charges",
	}},
	{"EDF-GDF", []string{
		"edf", "gdf", "engie", "électricité", "gaz", "énergie", "facture",
		"total energies", "direct energie", "eni", "planete oui",
	}},
	{"Internet", []string{
		"orange", "sfr", "free", "bouygues", "internet", "box", "télécom",
		"mobile", "forfait", "téléphone", "fibre", "adsl",
	}},
	{"Santé", []string{
		"médecin", "pharmacie", "dentiste", "hopital", "clinique", "mutuelle",
		"sécu", "santé", "médicament", "consultation", "radiologue",
		"ophtalmologue", "cardiologue", "kinésithérapeute",
	}},
	{"Vêtements", []string{
		"zara", "h&m", "uniqlo", "kiabi", "decathlon", "sport", "chaussures",
		"vêtement", "mode", "textile", "prêt-à-porter", "boutique",
	}},
	{"Loisirs", []string{
		"cinéma", "théâtre", "concert", "sport", "fitness", "gym", "piscine",
		"netflix", "spotify", "amazon prime", "disney", "jeux", "steam",
		"playstation", "xbox", "nintendo", "livre", "fnac", "cultura",
	}},
	{"Salaire", []string{
		"salaire", "traitement", "paye", "rémunération", "virement",
		"employeur", "société", "entreprise", "revenus", "net", "brut",
	}},
	{"Remboursement crédit", []string{
		"crédit", "prêt", "emprunt", "banque", "mensualité", "remboursement",
		"lcl", "bnp", "société générale", "crédit agricole", "caisse",
	}},
	{"Assurance maison", []string{
		"assurance", "habitation", "logement", "maif", "macif", "matmut",
		"groupama", "axa", "allianz", "generali", "maison", "appartement",
	}},
	{"Assurance voiture", []string{
		"assurance", "auto", "voiture", "véhicule", "automobile", "maif",
		"macif", "matmut", "groupama", "axa", "allianz", "generali",
	}},
	{"Impôt", []string{
		"impôt", "taxe", "trésor public", "dgfip", "fisc", "foncier",
		"habitation", "revenus", "prélèvement", "administration",
	}},
}

// amountPattern is a euro range with the amounts most often seen in it.
type amountPattern struct {
	Category string
	Min, Max float64
	Typical  []float64
}

var amountPatterns = []amountPattern{
	{"Loyer", 300, 2000, []float64{500, 700, 900, 1200}},
	{"EDF-GDF", 30, 300, []float64{50, 80, 120, 150}},
	{"Internet", 15, 80, []float64{25, 35, 45, 60}},
	{"Assurance voiture", 25, 150, []float64{40, 60, 80, 100}},
	{"Assurance maison", 15, 100, []float64{25, 35, 50, 70}},
}

// Categories lists every category known to the keyword rules, plus Autres.
func Categories() []string {
	out := make([]string, 0, len(keywordRules)+1)
	for _, r := range keywordRules {
		out = append(out, r.Category)
	}
	return append(out, "Autres")
}
