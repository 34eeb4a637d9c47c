package planner

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"diet-agent/internal/user"
)

// IngredientClass groups ingredients that dietary restrictions exclude together.
type IngredientClass string

const (
	ClassMeat    IngredientClass = "meat"
	ClassPork    IngredientClass = "pork"
	ClassPoultry IngredientClass = "poultry"
	ClassFish    IngredientClass = "fish"
	ClassSeafood IngredientClass = "seafood"
	ClassEgg     IngredientClass = "egg"
	ClassDairy   IngredientClass = "dairy"
	ClassHoney   IngredientClass = "honey"
	ClassGluten  IngredientClass = "gluten"
	ClassNuts    IngredientClass = "nuts"
	ClassSoy     IngredientClass = "soy"
)

var classKeywords = map[IngredientClass][]string{
	ClassMeat:    {"beef", "steak", "lamb", "mutton", "veal", "meat", "venison", "brisket", "sirloin", "burger"},
	ClassPork:    {"pork", "bacon", "ham", "prosciutto", "salami", "pepperoni", "chorizo", "lard", "gelatin", "sausage"},
	ClassPoultry: {"chicken", "turkey", "duck"},
	ClassFish:    {"fish", "salmon", "tuna", "cod", "tilapia", "sardine", "anchov", "mackerel", "trout", "halibut"},
	ClassSeafood: {"shrimp", "prawn", "crab", "lobster", "scallop", "mussel", "clam", "oyster", "squid", "octopus"},
	ClassEgg:     {"egg", "mayonnaise", "mayo", "meringue"},
	ClassDairy:   {"milk", "cheese", "yogurt", "yoghurt", "butter", "cream", "paneer", "ghee", "whey", "feta", "mozzarella", "parmesan", "ricotta", "curd", "kefir"},
	ClassHoney:   {"honey"},
	ClassGluten:  {"wheat", "bread", "toast=", "pasta", "naan", "roti=", "wrap=", "tortilla", "flour", "couscous", "barley", "rye", "seitan", "noodle", "cracker", "bun", "bulgur", "spaghetti", "sourdough", "bagel"},
	ClassNuts:    {"nut", "almond", "walnut", "cashew", "pecan", "pistachio", "hazelnut", "peanut", "macadamia"},
	ClassSoy:     {"soy", "soya", "soybean", "tofu", "edamame", "tempeh", "miso", "tamari"},
}

// neutralPhrases are matched before the keyword scan. They carry only the classes listed, so
// "coconut milk" is not dairy and "almond butter" is nuts but not dairy.
var neutralPhrases = []struct {
	phrase  string
	classes []IngredientClass
}{
	{"coconut milk", nil},
	{"coconut yogurt", nil},
	{"coconut cream", nil},
	{"coconut flour", nil},
	{"oat milk", nil},
	{"rice milk", nil},
	{"almond milk", []IngredientClass{ClassNuts}},
	{"cashew milk", []IngredientClass{ClassNuts}},
	{"soy milk", []IngredientClass{ClassSoy}},
	{"soy sauce", []IngredientClass{ClassSoy, ClassGluten}},
	{"peanut butter", []IngredientClass{ClassNuts}},
	{"almond butter", []IngredientClass{ClassNuts}},
	{"cashew butter", []IngredientClass{ClassNuts}},
	{"almond flour", []IngredientClass{ClassNuts}},
	{"cocoa butter", nil},
	{"vegan cheese", nil},
	{"vegan butter", nil},
	{"cream of tartar", nil},
	{"chickpea flour", nil},
	{"rice flour", nil},
	{"corn tortilla", nil},
	{"rice noodle", nil},
	{"eggplant", nil},
	{"butternut", nil},
	{"nutmeg", nil},
	{"nutritional yeast", nil},
	{"honeydew", nil},
}

var restrictionClasses = map[string][]IngredientClass{
	"vegetarian":     {ClassMeat, ClassPork, ClassPoultry, ClassFish, ClassSeafood},
	"pescatarian":    {ClassMeat, ClassPork, ClassPoultry},
	"vegan":          {ClassMeat, ClassPork, ClassPoultry, ClassFish, ClassSeafood, ClassEgg, ClassDairy, ClassHoney},
	"gluten-free":    {ClassGluten},
	"celiac":         {ClassGluten},
	"dairy-free":     {ClassDairy},
	"lactose-free":   {ClassDairy},
	"nut-free":       {ClassNuts},
	"peanut-free":    {ClassNuts},
	"egg-free":       {ClassEgg},
	"soy-free":       {ClassSoy},
	"shellfish-free": {ClassSeafood},
	"halal":          {ClassPork},
	"kosher":         {ClassPork, ClassSeafood},
}

// Labels that describe a diet rather than an ingredient; they exclude nothing.
var dietLabels = map[string]bool{
	"keto": true, "low-carb": true, "low-fat": true, "low-sodium": true, "paleo": true,
	"diabetic": true, "high-protein": true, "none": true,
}

// ClassifyIngredient returns the classes an ingredient (or dish name) belongs to.
func ClassifyIngredient(name string) map[IngredientClass]bool {
	classes := map[IngredientClass]bool{}
	text := " " + normalizeText(name) + " "
	for _, np := range neutralPhrases {
		if strings.Contains(text, " "+np.phrase) {
			for _, c := range np.classes {
				classes[c] = true
			}
			text = strings.ReplaceAll(text, np.phrase, " ")
		}
	}
	words := strings.Fields(text)
	for class, keywords := range classKeywords {
		for _, kw := range keywords {
			if matchesAnyWord(words, kw) {
				classes[class] = true
				break
			}
		}
	}
	return classes
}

// Exclusions is the compiled form of a restriction set.
type Exclusions struct {
	classes map[IngredientClass]bool
	words   []string
}

// NewExclusions compiles restriction tags. Known tags map to ingredient classes; any other tag
// (e.g. "mushrooms" from an avoid command) excludes ingredients that mention it.
func NewExclusions(restrictions []string) Exclusions {
	e := Exclusions{classes: map[IngredientClass]bool{}}
	for _, r := range restrictions {
		tag := user.NormalizeTag(r)
		if tag == "" || dietLabels[tag] {
			continue
		}
		if classes, ok := restrictionClasses[tag]; ok {
			for _, c := range classes {
				e.classes[c] = true
			}
			continue
		}
		word := strings.ReplaceAll(tag, "-", " ")
		if len(word) > 3 && strings.HasSuffix(word, "s") && !strings.Contains(word, " ") {
			word = strings.TrimSuffix(word, "s")
		}
		e.words = append(e.words, word)
	}
	return e
}

// Empty reports whether nothing is excluded.
func (e Exclusions) Empty() bool {
	return len(e.classes) == 0 && len(e.words) == 0
}

// Classes lists the excluded classes in a stable order.
func (e Exclusions) Classes() []string {
	var out []string
	for c := range e.classes {
		out = append(out, string(c))
	}
	sort.Strings(out)
	return out
}

// Words lists the literal foods to avoid.
func (e Exclusions) Words() []string {
	return e.words
}

// Violation reports why text is excluded, if it is.
func (e Exclusions) Violation(text string) (string, bool) {
	if e.Empty() {
		return "", false
	}
	for class := range ClassifyIngredient(text) {
		if e.classes[class] {
			return fmt.Sprintf("%q contains %s", text, class), true
		}
	}
	norm := normalizeText(text)
	words := strings.Fields(norm)
	for _, w := range e.words {
		if strings.Contains(w, " ") {
			if strings.Contains(" "+norm+" ", " "+w) {
				return fmt.Sprintf("%q contains %s", text, w), true
			}
			continue
		}
		if matchesAnyWord(words, w) {
			return fmt.Sprintf("%q contains %s", text, w), true
		}
	}
	return "", false
}

// Allows reports whether none of the texts is excluded.
func (e Exclusions) Allows(texts ...string) bool {
	for _, t := range texts {
		if _, bad := e.Violation(t); bad {
			return false
		}
	}
	return true
}

func normalizeText(s string) string {
	return strings.Join(strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r)
	}), " ")
}

// matchesAnyWord matches short keywords (and keywords marked with a trailing "=") exactly, with a
// plural suffix, and longer ones as prefixes: "eggs" and "walnuts" match, "champignon" does not
// match "ham" and "toasted" does not match "toast=".
func matchesAnyWord(words []string, kw string) bool {
	exact := strings.HasSuffix(kw, "=")
	kw = strings.TrimSuffix(kw, "=")
	for _, w := range words {
		if w == kw || w == kw+"s" || w == kw+"es" {
			return true
		}
		if !exact && len(kw) >= 4 && strings.HasPrefix(w, kw) {
			return true
		}
	}
	return false
}
