package query

import "github.com/agenthands/nutrigraph/internal/core/model"

type keywordSet struct {
	name  string
	words []string
}

// Entity families, checked in this order. A query naming none is about food.
var entityKeywords = []struct {
	kind  model.EntityKind
	words []string
}{
	{model.KindFood, []string{"aliment", "nourriture", "fruit", "légume", "viande", "poisson", "céréale", "légumineuse", "produit", "ingrédient"}},
	{model.KindRecipe, []string{"recette", "plat", "préparation", "cuisiner", "cuisine", "repas"}},
	{model.KindActivity, []string{"activité", "sport", "exercice", "mouvement", "marche", "course", "vélo", "natation", "gym"}},
	{model.KindPerson, []string{"personne", "patient", "utilisateur", "individu", "client"}},
}

const defaultKind = model.KindFood

// Numeric properties a query can filter on.
const (
	PropCalories = "calories"
	PropGlycemic = "ig"
	PropFibres   = "fibres"
	PropSodium   = "sodium"
)

// Modifiers qualifying a property.
const (
	ModLow    = "faible"
	ModHigh   = "élevé"
	ModMedium = "moyen"
	ModAny    = "any"
)

var propertyKeywords = []keywordSet{
	{PropCalories, []string{"calorie", "énergie", "kcal", "joule", "calorique"}},
	{PropGlycemic, []string{"index glycémique", "ig", "glycémie", "sucre", "glycémique"}},
	{PropFibres, []string{"fibre", "fibres", "fibre alimentaire"}},
	{PropSodium, []string{"sodium", "sel", "salé"}},
}

// Modifiers match whole words only, so plural and feminine forms are listed.
var modifierKeywords = []keywordSet{
	{ModLow, []string{"faible", "faibles", "bas", "basse", "basses", "peu", "léger", "légers", "légère", "légères", "light", "pauvre", "pauvres"}},
	{ModHigh, []string{"élevé", "élevés", "élevée", "élevées", "haut", "hauts", "haute", "hautes", "beaucoup", "riche", "riches", "fort", "forts", "forte", "fortes", "abondant", "abondants", "abondante", "abondantes"}},
	{ModMedium, []string{"moyen", "moyens", "moyenne", "moyennes", "modéré", "modérés", "modérée", "modérées", "moyennement"}},
}

// Field each property reads on an entity record.
var propertyFields = map[string]string{
	PropCalories: "calories",
	PropGlycemic: "indexGlycemique",
	PropFibres:   "teneurFibres",
	PropSodium:   "teneurSodium",
}

// PropertyField returns the record field a property filters on.
func PropertyField(property string) (string, bool) {
	f, ok := propertyFields[property]
	return f, ok
}

// thresholds per property and modifier; ig "moyen" is the band between its
// low and high limits.
var thresholds = map[string]map[string]float64{
	PropCalories: {ModLow: 150, ModHigh: 300},
	PropGlycemic: {ModLow: 55, ModHigh: 70},
	PropFibres:   {ModHigh: 5.0},
	PropSodium:   {ModLow: 50},
}

// highKeepsMissing lists the properties whose "élevé" filter lets entities
// without a value through. Every "faible" filter does.
var highKeepsMissing = map[string]bool{
	PropFibres: true,
}

// Health goals that imply filters on their own.
var conditionShortcuts = []struct {
	name    string
	words   []string
	filters []model.Filter
}{
	{
		name:  "diabète",
		words: []string{"diabète", "diabétique", "diabétiques", "diabetique"},
		filters: []model.Filter{
			{Property: PropGlycemic, Modifier: ModLow, Op: model.OpLessEqual, Value: 55, AllowMissing: true},
		},
	},
	{
		name:  "minceur",
		words: []string{"minceur", "maigrir", "régime", "perte de poids", "perdre du poids"},
		filters: []model.Filter{
			{Property: PropCalories, Modifier: ModLow, Op: model.OpLessEqual, Value: 200, AllowMissing: true},
			{Property: PropFibres, Modifier: ModHigh, Op: model.OpGreaterEqual, Value: 3, AllowMissing: true},
		},
	},
}
