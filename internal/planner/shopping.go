package planner

import (
	"fmt"
	"strings"
)

// Shopping list categories.
const (
	CategoryProtein = "protein"
	CategoryDairy   = "dairy & eggs"
	CategoryGrains  = "grains & bakery"
	CategoryNuts    = "nuts & seeds"
	CategoryProduce = "produce"
	CategoryPantry  = "pantry"
)

var produceWords = []string{
	"apple", "banana", "berries", "berry", "strawberr", "orange", "grape", "kiwi", "lemon", "lime",
	"avocado", "tomato", "onion", "garlic", "ginger", "spinach", "kale", "lettuce", "greens",
	"cucumber", "carrot", "broccoli", "pepper", "zucchini", "potato", "cabbage", "celery", "peas",
	"beans", "vegetable", "corn", "basil", "dill", "chive", "curry leaves",
}

// BuildShoppingList collects the distinct ingredients of the items in first-appearance order.
func BuildShoppingList(items []MealItem) []ShoppingItem {
	counts := map[string]int{}
	var order []string
	names := map[string]string{}
	for _, m := range items {
		seen := map[string]bool{}
		for _, ing := range m.Ingredients {
			key := strings.ToLower(strings.TrimSpace(ing))
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			if _, ok := counts[key]; !ok {
				order = append(order, key)
				names[key] = strings.TrimSpace(ing)
			}
			counts[key]++
		}
	}

	list := make([]ShoppingItem, 0, len(order))
	for _, key := range order {
		qty := "for 1 meal"
		if counts[key] > 1 {
			qty = fmt.Sprintf("for %d meals", counts[key])
		}
		list = append(list, ShoppingItem{Name: names[key], Quantity: qty, Category: categoryFor(names[key])})
	}
	return list
}

func categoryFor(ingredient string) string {
	classes := ClassifyIngredient(ingredient)
	switch {
	case classes[ClassMeat] || classes[ClassPork] || classes[ClassPoultry] || classes[ClassFish] || classes[ClassSeafood]:
		return CategoryProtein
	case classes[ClassDairy] || classes[ClassEgg]:
		return CategoryDairy
	case classes[ClassGluten]:
		return CategoryGrains
	case classes[ClassNuts]:
		return CategoryNuts
	}
	lower := strings.ToLower(ingredient)
	if strings.Contains(lower, "seed") {
		return CategoryNuts
	}
	for _, w := range produceWords {
		if strings.Contains(lower, w) {
			return CategoryProduce
		}
	}
	return CategoryPantry
}
