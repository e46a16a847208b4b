// Package recipe manages recipes with their ingredients, steps, categories,
// bookmarks and comments.
package recipe

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/roundtable/service/internal/category"
)

// Author is the compact user shown on recipes and comments.
type Author struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	ProfileURL *string `json:"profileUrl,omitempty"`
}

// Ingredient is one line of a recipe's ingredient list.
type Ingredient struct {
	IngredientName string `json:"ingredientName" validate:"required,max=200" example:"Flour"`
	QuantityAmount string `json:"quantityAmount" validate:"max=50"           example:"250"`
	QuantityUnit   string `json:"quantityUnit"   validate:"max=50"           example:"g"`
}

// Step is one numbered instruction.
type Step struct {
	StepNumber  int    `json:"stepNumber"  example:"1"`
	Instruction string `json:"instruction" validate:"required,max=2000" example:"Preheat the oven."`
}

// Summary is the list form of a recipe.
type Summary struct {
	ID            string    `json:"id"`
	UserID        string    `json:"userId"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	ServingSize   int       `json:"servingSize"`
	RecipeURL     *string   `json:"recipeUrl,omitempty"`
	Author        Author    `json:"author"`
	BookmarkCount int       `json:"bookmarkCount"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Recipe is the full detail form.
type Recipe struct {
	Summary
	Ingredients []Ingredient        `json:"ingredients"`
	Steps       []Step              `json:"steps"`
	Categories  []category.Category `json:"categories"`
	Bookmarked  bool                `json:"bookmarked"`
}

// Comment is a remark left on a recipe.
type Comment struct {
	ID        string    `json:"id"`
	RecipeID  string    `json:"recipeId"`
	Text      string    `json:"text"`
	Author    Author    `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
}

// Input is the body of create and update requests. Categories may be sent
// as a single categoryId, a list of categoryIds, or both.
type Input struct {
	Title       string       `json:"title"       validate:"required,max=200"`
	Description string       `json:"description" validate:"max=5000"`
	ServingSize int          `json:"servingSize" validate:"gte=0,lte=1000"`
	Ingredients []Ingredient `json:"ingredients" validate:"dive"`
	Steps       []Step       `json:"steps"       validate:"dive"`
	CategoryID  FlexInt      `json:"categoryId"`
	CategoryIDs []int        `json:"categoryIds" validate:"dive,gt=0"`
}

// CategoryList returns the distinct category IDs named by the input.
func (in Input) CategoryList() []int {
	seen := map[int]bool{}
	var out []int
	add := func(id int) {
		if id > 0 && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	add(int(in.CategoryID))
	for _, id := range in.CategoryIDs {
		add(id)
	}
	return out
}

// normalize renumbers steps in order and applies the default serving size.
func (in *Input) normalize() {
	in.Title = strings.TrimSpace(in.Title)
	if in.ServingSize == 0 {
		in.ServingSize = 1
	}
	for i := range in.Steps {
		in.Steps[i].StepNumber = i + 1
	}
}

// FlexInt is an integer that also accepts a numeric JSON string; web forms
// send select values as strings. Empty strings and null decode to zero.
type FlexInt int

func (f *FlexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = 0
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*f = 0
			return nil
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("invalid integer %q", s)
		}
		*f = FlexInt(n)
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return errors.New("invalid integer")
	}
	*f = FlexInt(n)
	return nil
}
