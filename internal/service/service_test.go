package service

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabishimam2/reciepe-app-api/internal/domain"
	"github.com/tabishimam2/reciepe-app-api/internal/metrics"
	"github.com/tabishimam2/reciepe-app-api/internal/repository"
	"github.com/tabishimam2/reciepe-app-api/internal/repository/sqlite"
	"github.com/tabishimam2/reciepe-app-api/internal/storage"
)

// testEnv wires the services over an in-memory SQLite database and a
// temporary filesystem image store.
type testEnv struct {
	repos       *repository.Repositories
	images      *storage.FilesystemBackend
	users       *UserService
	recipes     *RecipeService
	tags        *LabelService
	ingredients *LabelService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	db, err := sqlite.NewDB(ctx, sqlite.DefaultConfig(sqlite.MemoryPath), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate(ctx))

	images, err := storage.NewFilesystemBackend(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)

	repos := db.Repositories()
	logger := zerolog.Nop()
	return &testEnv{
		repos:       repos,
		images:      images,
		users:       NewUserService(repos.Users, UserServiceConfig{MinPasswordLength: 5, BcryptCost: 4}, logger),
		recipes:     NewRecipeService(repos, images, metrics.New(), RecipeServiceConfig{MaxImageSize: 1 << 20}, logger),
		tags:        NewLabelService(repos.Tags, logger),
		ingredients: NewLabelService(repos.Ingredients, logger),
	}
}

func (e *testEnv) createUser(t *testing.T, email string) *domain.User {
	t.Helper()
	out, err := e.users.CreateAccount(context.Background(), CreateAccountInput{
		Email:    email,
		Password: "testpass123",
		Name:     "Test",
	})
	require.NoError(t, err)
	return out.User
}

func (e *testEnv) createRecipe(t *testing.T, owner *domain.User, title string, tags ...string) *domain.Recipe {
	t.Helper()
	refs := make([]domain.LabelRef, len(tags))
	for i, name := range tags {
		refs[i] = domain.LabelRef{Name: name}
	}
	recipe, err := e.recipes.Create(context.Background(), CreateRecipeInput{
		OwnerID:     owner.ID,
		Title:       title,
		TimeMinutes: 5,
		Price:       domain.MustParsePrice("5.50"),
		Tags:        refs,
	})
	require.NoError(t, err)
	return recipe
}

func labelNames(labels []*domain.Label) []string {
	names := make([]string, len(labels))
	for i, l := range labels {
		names[i] = l.Name
	}
	return names
}

func recipeIDs(recipes []*domain.Recipe) []int64 {
	ids := make([]int64, len(recipes))
	for i, r := range recipes {
		ids[i] = r.ID
	}
	return ids
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 25), G: uint8(y * 25), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// =============================================================================
// Recipe aggregate
// =============================================================================

func TestRecipeService_CreateAndString(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.createUser(t, "a@example.com")

	recipe, err := env.recipes.Create(ctx, CreateRecipeInput{
		OwnerID:     owner.ID,
		Title:       "Sample Recipe",
		TimeMinutes: 5,
		Price:       domain.MustParsePrice("5.50"),
		Tags:        []domain.LabelRef{{Name: "Thai"}, {Name: "Dinner"}},
		Ingredients: []domain.LabelRef{{Name: "Prawns"}},
	})
	require.NoError(t, err)

	assert.Equal(t, "Sample Recipe", recipe.String())
	assert.ElementsMatch(t, []string{"Thai", "Dinner"}, labelNames(recipe.Tags))
	assert.Equal(t, []string{"Prawns"}, labelNames(recipe.Ingredients))

	got, err := env.recipes.Get(ctx, owner.ID, recipe.ID)
	require.NoError(t, err)
	assert.Equal(t, "5.50", got.Price.String())
	assert.ElementsMatch(t, []string{"Thai", "Dinner"}, labelNames(got.Tags))
}

func TestRecipeService_CreateValidation(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, "a@example.com")

	tests := []struct {
		name      string
		input     CreateRecipeInput
		wantField string
	}{
		{name: "blank title", input: CreateRecipeInput{Title: "  "}, wantField: "title"},
		{name: "negative time", input: CreateRecipeInput{Title: "x", TimeMinutes: -1}, wantField: "time_minutes"},
		{name: "blank tag", input: CreateRecipeInput{Title: "x", Tags: []domain.LabelRef{{Name: " "}}}, wantField: "tags"},
		{name: "blank ingredient", input: CreateRecipeInput{Title: "x", Ingredients: []domain.LabelRef{{Name: ""}}}, wantField: "ingredients"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.input.OwnerID = owner.ID
			_, err := env.recipes.Create(context.Background(), tt.input)

			verr, ok := domain.AsValidationError(err)
			if !ok {
				t.Fatalf("expected validation error, got %v", err)
			}
			if _, ok := verr.Fields[tt.wantField]; !ok {
				t.Errorf("expected error on %q, got %v", tt.wantField, verr.Fields)
			}
		})
	}

	recipes, err := env.recipes.List(context.Background(), ListRecipesInput{OwnerID: owner.ID})
	require.NoError(t, err)
	assert.Empty(t, recipes, "failed creates must not leave rows behind")
}

func TestRecipeService_ReuseExistingTag(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.createUser(t, "a@example.com")

	indian, _, err := env.repos.Tags.GetOrCreate(ctx, owner.ID, "Indian")
	require.NoError(t, err)

	recipe, err := env.recipes.Create(ctx, CreateRecipeInput{
		OwnerID: owner.ID,
		Title:   "Pongal",
		Tags:    []domain.LabelRef{{Name: "Indian"}, {Name: "Breakfast"}},
	})
	require.NoError(t, err)
	require.Len(t, recipe.Tags, 2)

	tags, err := env.tags.List(ctx, ListLabelsInput{OwnerID: owner.ID})
	require.NoError(t, err)
	assert.Len(t, tags, 2)

	var found bool
	for _, tag := range recipe.Tags {
		if tag.Name == "Indian" {
			found = true
			assert.Equal(t, indian.ID, tag.ID)
		}
	}
	assert.True(t, found)
}

func TestRecipeService_DuplicateNamesInPayload(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.createUser(t, "a@example.com")

	recipe := env.createRecipe(t, owner, "Soup", "Vegan", "Vegan", " Vegan ")
	assert.Equal(t, []string{"Vegan"}, labelNames(recipe.Tags))

	second := env.createRecipe(t, owner, "Salad", "Vegan", "vegan")
	assert.ElementsMatch(t, []string{"Vegan", "vegan"}, labelNames(second.Tags))

	tags, err := env.tags.List(ctx, ListLabelsInput{OwnerID: owner.ID})
	require.NoError(t, err)
	assert.Equal(t, []string{"vegan", "Vegan"}, labelNames(tags))
}

func TestRecipeService_UpdateReplaceIfPresent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.createUser(t, "a@example.com")
	recipe := env.createRecipe(t, owner, "Curry", "Spicy", "Dinner")

	// Absent key leaves tags untouched.
	newTitle := "Green Curry"
	updated, err := env.recipes.Update(ctx, UpdateRecipeInput{OwnerID: owner.ID, ID: recipe.ID, Title: &newTitle})
	require.NoError(t, err)
	assert.Equal(t, "Green Curry", updated.Title)
	assert.ElementsMatch(t, []string{"Spicy", "Dinner"}, labelNames(updated.Tags))

	// Present key replaces the set.
	lunch := []domain.LabelRef{{Name: "Lunch"}}
	updated, err = env.recipes.Update(ctx, UpdateRecipeInput{OwnerID: owner.ID, ID: recipe.ID, Tags: &lunch})
	require.NoError(t, err)
	assert.Equal(t, []string{"Lunch"}, labelNames(updated.Tags))

	// Empty list clears it.
	empty := []domain.LabelRef{}
	updated, err = env.recipes.Update(ctx, UpdateRecipeInput{OwnerID: owner.ID, ID: recipe.ID, Tags: &empty})
	require.NoError(t, err)
	assert.Empty(t, updated.Tags)

	got, err := env.recipes.Get(ctx, owner.ID, recipe.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Tags)

	// Replaced labels survive as rows.
	tags, err := env.tags.List(ctx, ListLabelsInput{OwnerID: owner.ID})
	require.NoError(t, err)
	assert.Len(t, tags, 3)
}

func TestRecipeService_UpdateIngredientsIndependently(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.createUser(t, "a@example.com")
	recipe := env.createRecipe(t, owner, "Curry", "Spicy")

	limes := []domain.LabelRef{{Name: "Limes"}}
	updated, err := env.recipes.Update(ctx, UpdateRecipeInput{OwnerID: owner.ID, ID: recipe.ID, Ingredients: &limes})
	require.NoError(t, err)
	assert.Equal(t, []string{"Limes"}, labelNames(updated.Ingredients))
	assert.Equal(t, []string{"Spicy"}, labelNames(updated.Tags))
}

func TestRecipeService_UpdateOtherOwner(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.createUser(t, "a@example.com")
	other := env.createUser(t, "b@example.com")
	recipe := env.createRecipe(t, owner, "Curry")

	title := "Stolen"
	_, err := env.recipes.Update(ctx, UpdateRecipeInput{OwnerID: other.ID, ID: recipe.ID, Title: &title})
	assert.ErrorIs(t, err, domain.ErrRecipeNotFound)

	got, err := env.recipes.Get(ctx, owner.ID, recipe.ID)
	require.NoError(t, err)
	assert.Equal(t, "Curry", got.Title)
	assert.Equal(t, owner.ID, got.OwnerID)
}

func TestRecipeService_UpdateValidationRollsBack(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.createUser(t, "a@example.com")
	recipe := env.createRecipe(t, owner, "Curry", "Spicy")

	blank := ""
	tags := []domain.LabelRef{{Name: "New"}}
	_, err := env.recipes.Update(ctx, UpdateRecipeInput{OwnerID: owner.ID, ID: recipe.ID, Title: &blank, Tags: &tags})
	require.ErrorIs(t, err, domain.ErrValidation)

	got, err := env.recipes.Get(ctx, owner.ID, recipe.ID)
	require.NoError(t, err)
	assert.Equal(t, "Curry", got.Title)
	assert.Equal(t, []string{"Spicy"}, labelNames(got.Tags))
}

func TestRecipeService_ListIsolationAndOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.createUser(t, "a@example.com")
	b := env.createUser(t, "b@example.com")

	first := env.createRecipe(t, a, "Sample Recipe")
	second := env.createRecipe(t, a, "Another")
	env.createRecipe(t, b, "Not yours")

	list, err := env.recipes.List(ctx, ListRecipesInput{OwnerID: a.ID})
	require.NoError(t, err)
	assert.Equal(t, []int64{second.ID, first.ID}, recipeIDs(list))

	list, err = env.recipes.List(ctx, ListRecipesInput{OwnerID: b.ID})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Not yours", list[0].Title)
}

func TestRecipeService_ListFilters(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.createUser(t, "a@example.com")

	both := env.createRecipe(t, owner, "Both", "Vegan", "Vegetarian")
	vegan := env.createRecipe(t, owner, "Vegan only", "Vegan")
	env.createRecipe(t, owner, "Plain")

	var veganID, vegetarianID int64
	for _, tag := range both.Tags {
		switch tag.Name {
		case "Vegan":
			veganID = tag.ID
		case "Vegetarian":
			vegetarianID = tag.ID
		}
	}

	list, err := env.recipes.List(ctx, ListRecipesInput{OwnerID: owner.ID, TagIDs: []int64{veganID, vegetarianID}})
	require.NoError(t, err)
	assert.Equal(t, []int64{vegan.ID, both.ID}, recipeIDs(list))

	cheese := []domain.LabelRef{{Name: "Cheese"}}
	withCheese, err := env.recipes.Update(ctx, UpdateRecipeInput{OwnerID: owner.ID, ID: vegan.ID, Ingredients: &cheese})
	require.NoError(t, err)

	list, err = env.recipes.List(ctx, ListRecipesInput{
		OwnerID:       owner.ID,
		TagIDs:        []int64{veganID},
		IngredientIDs: []int64{withCheese.Ingredients[0].ID},
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{vegan.ID}, recipeIDs(list))
}

func TestRecipeService_Delete(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.createUser(t, "a@example.com")
	other := env.createUser(t, "b@example.com")
	recipe := env.createRecipe(t, owner, "Curry", "Spicy")

	err := env.recipes.Delete(ctx, other.ID, recipe.ID)
	assert.ErrorIs(t, err, domain.ErrRecipeNotFound)
	_, err = env.recipes.Get(ctx, owner.ID, recipe.ID)
	require.NoError(t, err)

	require.NoError(t, env.recipes.Delete(ctx, owner.ID, recipe.ID))
	_, err = env.recipes.Get(ctx, owner.ID, recipe.ID)
	assert.ErrorIs(t, err, domain.ErrRecipeNotFound)

	// Tags outlive the recipe.
	tags, err := env.tags.List(ctx, ListLabelsInput{OwnerID: owner.ID})
	require.NoError(t, err)
	assert.Equal(t, []string{"Spicy"}, labelNames(tags))
}

func TestRecipeService_AttachImage(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.createUser(t, "a@example.com")
	other := env.createUser(t, "b@example.com")
	recipe := env.createRecipe(t, owner, "Curry")

	_, err := env.recipes.AttachImage(ctx, AttachImageInput{OwnerID: owner.ID, ID: recipe.ID, Data: []byte("notimage")})
	verr, ok := domain.AsValidationError(err)
	require.True(t, ok, "expected validation error, got %v", err)
	assert.Contains(t, verr.Fields, "image")

	_, err = env.recipes.AttachImage(ctx, AttachImageInput{OwnerID: other.ID, ID: recipe.ID, Data: pngBytes(t)})
	assert.ErrorIs(t, err, domain.ErrRecipeNotFound)

	updated, err := env.recipes.AttachImage(ctx, AttachImageInput{OwnerID: owner.ID, ID: recipe.ID, Data: pngBytes(t)})
	require.NoError(t, err)
	assert.Regexp(t, `^uploads/recipe/[0-9a-f-]{36}\.png$`, updated.ImageKey)
	assert.NotEmpty(t, updated.ImageBlurHash)

	exists, err := env.images.Exists(ctx, updated.ImageKey)
	require.NoError(t, err)
	assert.True(t, exists)

	rc, contentType, err := env.recipes.OpenImage(ctx, owner.ID, recipe.ID)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, pngBytes(t), data)
	assert.Equal(t, "image/png", contentType)

	// Replacing removes the previous object.
	firstKey := updated.ImageKey
	updated, err = env.recipes.AttachImage(ctx, AttachImageInput{OwnerID: owner.ID, ID: recipe.ID, Data: pngBytes(t)})
	require.NoError(t, err)
	assert.NotEqual(t, firstKey, updated.ImageKey)
	exists, err = env.images.Exists(ctx, firstKey)
	require.NoError(t, err)
	assert.False(t, exists)

	// Deleting the recipe removes the image.
	require.NoError(t, env.recipes.Delete(ctx, owner.ID, recipe.ID))
	exists, err = env.images.Exists(ctx, updated.ImageKey)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRecipeService_AttachImageTooLarge(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, "a@example.com")
	recipe := env.createRecipe(t, owner, "Curry")
	env.recipes.config.MaxImageSize = 16

	_, err := env.recipes.AttachImage(context.Background(), AttachImageInput{OwnerID: owner.ID, ID: recipe.ID, Data: pngBytes(t)})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestRecipeService_AttachImageTooManyPixels(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.createUser(t, "a@example.com")
	recipe := env.createRecipe(t, owner, "Curry")
	env.recipes.config.MaxImagePixels = 99

	_, err := env.recipes.AttachImage(ctx, AttachImageInput{OwnerID: owner.ID, ID: recipe.ID, Data: pngBytes(t)})
	verr, ok := domain.AsValidationError(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, []string{"Ensure the image has at most 99 pixels."}, verr.Fields["image"])

	stored, err := env.recipes.Get(ctx, owner.ID, recipe.ID)
	require.NoError(t, err)
	assert.False(t, stored.HasImage())

	env.recipes.config.MaxImagePixels = 100
	_, err = env.recipes.AttachImage(ctx, AttachImageInput{OwnerID: owner.ID, ID: recipe.ID, Data: pngBytes(t)})
	require.NoError(t, err)
}

func TestRecipeService_OpenImageWithoutImage(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, "a@example.com")
	recipe := env.createRecipe(t, owner, "Curry")

	_, _, err := env.recipes.OpenImage(context.Background(), owner.ID, recipe.ID)
	assert.ErrorIs(t, err, domain.ErrRecipeHasNoImage)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRecipeService_PurgeOwnerImages(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.createUser(t, "a@example.com")

	var keys []string
	for _, title := range []string{"One", "Two"} {
		recipe := env.createRecipe(t, owner, title)
		updated, err := env.recipes.AttachImage(ctx, AttachImageInput{OwnerID: owner.ID, ID: recipe.ID, Data: pngBytes(t)})
		require.NoError(t, err)
		keys = append(keys, updated.ImageKey)
	}
	env.createRecipe(t, owner, "No image")

	removed, err := env.recipes.PurgeOwnerImages(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	for _, key := range keys {
		exists, err := env.images.Exists(ctx, key)
		require.NoError(t, err)
		assert.False(t, exists)
	}
}

// =============================================================================
// Labels
// =============================================================================

func TestLabelService_ListAssignedOnly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.createUser(t, "a@example.com")
	other := env.createUser(t, "b@example.com")

	env.createRecipe(t, owner, "One", "Breakfast")
	env.createRecipe(t, owner, "Two", "Breakfast")
	_, _, err := env.repos.Tags.GetOrCreate(ctx, owner.ID, "Lunch")
	require.NoError(t, err)
	env.createRecipe(t, other, "Theirs", "Dinner")

	all, err := env.tags.List(ctx, ListLabelsInput{OwnerID: owner.ID})
	require.NoError(t, err)
	assert.Equal(t, []string{"Lunch", "Breakfast"}, labelNames(all))

	assigned, err := env.tags.List(ctx, ListLabelsInput{OwnerID: owner.ID, AssignedOnly: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"Breakfast"}, labelNames(assigned))
}

func TestLabelService_UpdateAndDelete(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.createUser(t, "a@example.com")
	other := env.createUser(t, "b@example.com")
	recipe := env.createRecipe(t, owner, "Curry", "Spicy", "Dinner")

	var spicy, dinner *domain.Label
	for _, l := range recipe.Tags {
		if l.Name == "Spicy" {
			spicy = l
		} else {
			dinner = l
		}
	}

	hot := "Hot"
	renamed, err := env.tags.Update(ctx, UpdateLabelInput{OwnerID: owner.ID, ID: spicy.ID, Name: &hot})
	require.NoError(t, err)
	assert.Equal(t, "Hot", renamed.Name)

	_, err = env.tags.Update(ctx, UpdateLabelInput{OwnerID: other.ID, ID: spicy.ID, Name: &hot})
	assert.ErrorIs(t, err, domain.ErrLabelNotFound)

	taken := "Dinner"
	_, err = env.tags.Update(ctx, UpdateLabelInput{OwnerID: owner.ID, ID: spicy.ID, Name: &taken})
	verr, ok := domain.AsValidationError(err)
	require.True(t, ok, "expected validation error, got %v", err)
	assert.Contains(t, verr.Fields, "name")

	blank := "   "
	_, err = env.tags.Update(ctx, UpdateLabelInput{OwnerID: owner.ID, ID: spicy.ID, Name: &blank})
	assert.ErrorIs(t, err, domain.ErrValidation)

	err = env.tags.Delete(ctx, other.ID, dinner.ID)
	assert.ErrorIs(t, err, domain.ErrLabelNotFound)

	require.NoError(t, env.tags.Delete(ctx, owner.ID, dinner.ID))
	got, err := env.recipes.Get(ctx, owner.ID, recipe.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Hot"}, labelNames(got.Tags))

	_, err = env.tags.Get(ctx, owner.ID, dinner.ID)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestLabelService_IngredientsAreSeparate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.createUser(t, "a@example.com")

	_, err := env.recipes.Create(ctx, CreateRecipeInput{
		OwnerID:     owner.ID,
		Title:       "Toast",
		Tags:        []domain.LabelRef{{Name: "Salt"}},
		Ingredients: []domain.LabelRef{{Name: "Salt"}, {Name: "Bread"}},
	})
	require.NoError(t, err)

	assert.Equal(t, domain.LabelIngredient, env.ingredients.Kind())
	ingredients, err := env.ingredients.List(ctx, ListLabelsInput{OwnerID: owner.ID})
	require.NoError(t, err)
	assert.Equal(t, []string{"Salt", "Bread"}, labelNames(ingredients))

	tags, err := env.tags.List(ctx, ListLabelsInput{OwnerID: owner.ID})
	require.NoError(t, err)
	assert.Equal(t, []string{"Salt"}, labelNames(tags))
}
