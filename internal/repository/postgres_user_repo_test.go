package repository

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/learnhub/internal/database"
	"github.com/hitoshi/learnhub/internal/model"
)

// setupRepoTestDB はマイグレーション適用済みのテスト用DBを返す。
// TEST_DATABASE_URLが未設定の場合はスキップする。
func setupRepoTestDB(t *testing.T) *sql.DB {
	t.Helper()

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL が未設定のためスキップ")
	}

	if _, err := database.RunMigrations(dbURL); err != nil {
		t.Fatalf("マイグレーション実行に失敗: %v", err)
	}

	db, err := database.Open(dbURL)
	if err != nil {
		t.Fatalf("データベースへの接続に失敗: %v", err)
	}
	t.Cleanup(func() {
		db.Exec("TRUNCATE users CASCADE")
		db.Close()
	})

	if _, err := db.Exec("TRUNCATE users CASCADE"); err != nil {
		t.Fatalf("テーブルの初期化に失敗: %v", err)
	}
	return db
}

func newTestUser(email, name string) (*model.User, *model.Identity) {
	now := time.Now().UTC()
	user := &model.User{
		ID:        uuid.New().String(),
		Email:     email,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	identity := &model.Identity{
		ID:             uuid.New().String(),
		UserID:         user.ID,
		Provider:       "google",
		ProviderUserID: "google-" + email,
		CreatedAt:      now,
	}
	return user, identity
}

func strPtr(s string) *string { return &s }

func TestPostgresUserRepo_CreateWithIdentity_AndFind(t *testing.T) {
	db := setupRepoTestDB(t)
	ctx := context.Background()
	users := NewPostgresUserRepo(db)
	identities := NewPostgresIdentityRepo(db)

	user, identity := newTestUser("alice@example.com", "Alice")
	if err := users.CreateWithIdentity(ctx, user, identity); err != nil {
		t.Fatalf("CreateWithIdentity() error = %v", err)
	}

	got, err := users.FindByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if got == nil || got.Email != "alice@example.com" || got.Name != "Alice" {
		t.Fatalf("FindByID() = %+v", got)
	}

	found, err := identities.FindByProviderAndProviderUserID(ctx, "google", identity.ProviderUserID)
	if err != nil {
		t.Fatalf("FindByProviderAndProviderUserID() error = %v", err)
	}
	if found == nil || found.UserID != user.ID {
		t.Fatalf("identity = %+v, want user %s", found, user.ID)
	}
}

func TestPostgresIdentityRepo_ListProvidersByUserID(t *testing.T) {
	db := setupRepoTestDB(t)
	ctx := context.Background()
	users := NewPostgresUserRepo(db)
	identities := NewPostgresIdentityRepo(db)

	user, identity := newTestUser("carol@example.com", "Carol")
	if err := users.CreateWithIdentity(ctx, user, identity); err != nil {
		t.Fatalf("CreateWithIdentity() error = %v", err)
	}
	if _, err := db.ExecContext(ctx,
		`INSERT INTO identities (id, user_id, provider, provider_user_id, created_at) VALUES ($1, $2, 'github', $3, NOW())`,
		uuid.New().String(), user.ID, "gh-"+user.ID,
	); err != nil {
		t.Fatalf("failed to insert github identity: %v", err)
	}

	got, err := identities.ListProvidersByUserID(ctx, user.ID)
	if err != nil {
		t.Fatalf("ListProvidersByUserID() error = %v", err)
	}
	if len(got) != 2 || got[0] != "github" || got[1] != "google" {
		t.Errorf("providers = %v, want [github google]", got)
	}

	none, err := identities.ListProvidersByUserID(ctx, uuid.New().String())
	if err != nil {
		t.Fatalf("ListProvidersByUserID(unknown) error = %v", err)
	}
	if none == nil || len(none) != 0 {
		t.Errorf("providers for unknown user = %#v, want empty slice", none)
	}
}

func TestPostgresUserRepo_FindByID_NotFound(t *testing.T) {
	db := setupRepoTestDB(t)
	users := NewPostgresUserRepo(db)

	got, err := users.FindByID(context.Background(), uuid.New().String())
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if got != nil {
		t.Errorf("FindByID() = %+v, want nil", got)
	}
}

func TestPostgresUserRepo_CreateWithIdentity_DuplicateRollsBack(t *testing.T) {
	db := setupRepoTestDB(t)
	ctx := context.Background()
	users := NewPostgresUserRepo(db)

	first, identity := newTestUser("bob@example.com", "Bob")
	if err := users.CreateWithIdentity(ctx, first, identity); err != nil {
		t.Fatalf("CreateWithIdentity() error = %v", err)
	}

	second, dup := newTestUser("bob@example.com", "Bob Again")
	err := users.CreateWithIdentity(ctx, second, dup)
	if !errors.Is(err, ErrIdentityExists) {
		t.Fatalf("CreateWithIdentity() error = %v, want ErrIdentityExists", err)
	}

	got, err := users.FindByID(ctx, second.ID)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if got != nil {
		t.Error("ロールバックされたユーザーが残っている")
	}
}

func TestPostgresUserRepo_CreateWithIdentity_Concurrent(t *testing.T) {
	db := setupRepoTestDB(t)
	ctx := context.Background()
	users := NewPostgresUserRepo(db)

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := range workers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			u, id := newTestUser("race@example.com", "Race")
			errs[i] = users.CreateWithIdentity(ctx, u, id)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrIdentityExists):
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Errorf("succeeded = %d, want 1", succeeded)
	}

	var count int
	if err := db.QueryRow("SELECT count(*) FROM users").Scan(&count); err != nil {
		t.Fatalf("count users: %v", err)
	}
	if count != 1 {
		t.Errorf("users = %d, want 1", count)
	}
}

func TestPostgresUserRepo_SyncProviderFields_PreservesProfile(t *testing.T) {
	db := setupRepoTestDB(t)
	ctx := context.Background()
	users := NewPostgresUserRepo(db)

	user, identity := newTestUser("carol@example.com", "Carol")
	user.Image = "https://example.com/old.png"
	if err := users.CreateWithIdentity(ctx, user, identity); err != nil {
		t.Fatalf("CreateWithIdentity() error = %v", err)
	}
	if _, err := users.UpdateProfile(ctx, user.ID, model.ProfileUpdate{Bio: strPtr("Go developer")}); err != nil {
		t.Fatalf("UpdateProfile() error = %v", err)
	}

	got, err := users.SyncProviderFields(ctx, user.ID, "carol@new.example.com", "", "")
	if err != nil {
		t.Fatalf("SyncProviderFields() error = %v", err)
	}
	if got.Email != "carol@new.example.com" {
		t.Errorf("Email = %q", got.Email)
	}
	if got.Name != "Carol" {
		t.Errorf("空のnameで既存値が上書きされた: %q", got.Name)
	}
	if got.Image != "https://example.com/old.png" {
		t.Errorf("Image = %q", got.Image)
	}
	if got.Bio != "Go developer" {
		t.Errorf("Bio = %q, want preserved", got.Bio)
	}
}

func TestPostgresUserRepo_SyncProviderFields_MissingUser(t *testing.T) {
	db := setupRepoTestDB(t)
	users := NewPostgresUserRepo(db)

	got, err := users.SyncProviderFields(context.Background(), uuid.New().String(), "x@example.com", "X", "")
	if err != nil {
		t.Fatalf("SyncProviderFields() error = %v", err)
	}
	if got != nil {
		t.Errorf("SyncProviderFields() = %+v, want nil", got)
	}
}

func TestPostgresUserRepo_UpdateProfile_Partial(t *testing.T) {
	db := setupRepoTestDB(t)
	ctx := context.Background()
	users := NewPostgresUserRepo(db)

	user, identity := newTestUser("dave@example.com", "Dave")
	if err := users.CreateWithIdentity(ctx, user, identity); err != nil {
		t.Fatalf("CreateWithIdentity() error = %v", err)
	}

	got, err := users.UpdateProfile(ctx, user.ID, model.ProfileUpdate{
		GitHubUsername: strPtr("dave"),
		Website:        strPtr("https://dave.example.com"),
	})
	if err != nil {
		t.Fatalf("UpdateProfile() error = %v", err)
	}
	if got.GitHubUsername != "dave" || got.Website != "https://dave.example.com" {
		t.Errorf("UpdateProfile() = %+v", got)
	}
	if got.Name != "Dave" {
		t.Errorf("Name = %q, want unchanged", got.Name)
	}
}

func TestPostgresCredentialRepo_CreateWithUser(t *testing.T) {
	db := setupRepoTestDB(t)
	ctx := context.Background()
	creds := NewPostgresCredentialRepo(db)

	user, identity := newTestUser("erin@example.com", "Erin")
	identity.Provider = "credentials"
	identity.ProviderUserID = "erin@example.com"
	cred := &model.Credential{
		Email:        "erin@example.com",
		UserID:       user.ID,
		PasswordHash: "$2a$10$hash",
		CreatedAt:    user.CreatedAt,
	}
	if err := creds.CreateWithUser(ctx, user, identity, cred); err != nil {
		t.Fatalf("CreateWithUser() error = %v", err)
	}

	got, err := creds.FindByEmail(ctx, "erin@example.com")
	if err != nil {
		t.Fatalf("FindByEmail() error = %v", err)
	}
	if got == nil || got.UserID != user.ID || got.PasswordHash != "$2a$10$hash" {
		t.Fatalf("FindByEmail() = %+v", got)
	}

	again, againIdentity := newTestUser("erin@example.com", "Erin")
	againIdentity.Provider = "credentials"
	againIdentity.ProviderUserID = "erin@example.com"
	againCred := &model.Credential{Email: "erin@example.com", UserID: again.ID, PasswordHash: "x", CreatedAt: again.CreatedAt}
	if err := creds.CreateWithUser(ctx, again, againIdentity, againCred); !errors.Is(err, ErrCredentialExists) {
		t.Errorf("CreateWithUser() error = %v, want ErrCredentialExists", err)
	}

	missing, err := creds.FindByEmail(ctx, "nobody@example.com")
	if err != nil {
		t.Fatalf("FindByEmail() error = %v", err)
	}
	if missing != nil {
		t.Errorf("FindByEmail() = %+v, want nil", missing)
	}
}

func TestPostgresSessionRepo_Lifecycle(t *testing.T) {
	db := setupRepoTestDB(t)
	ctx := context.Background()
	users := NewPostgresUserRepo(db)
	sessions := NewPostgresSessionRepo(db)

	user, identity := newTestUser("frank@example.com", "Frank")
	if err := users.CreateWithIdentity(ctx, user, identity); err != nil {
		t.Fatalf("CreateWithIdentity() error = %v", err)
	}

	now := time.Now().UTC()
	active := &model.Session{ID: "active-session", UserID: user.ID, ExpiresAt: now.Add(time.Hour), CreatedAt: now}
	expired := &model.Session{ID: "expired-session", UserID: user.ID, ExpiresAt: now.Add(-time.Hour), CreatedAt: now}
	for _, s := range []*model.Session{active, expired} {
		if err := sessions.Create(ctx, s); err != nil {
			t.Fatalf("Create(%s) error = %v", s.ID, err)
		}
	}

	got, err := sessions.FindByID(ctx, "active-session")
	if err != nil || got == nil || got.UserID != user.ID {
		t.Fatalf("FindByID(active) = %+v, %v", got, err)
	}
	if got, _ := sessions.FindByID(ctx, "expired-session"); got != nil {
		t.Errorf("FindByID(expired) = %+v, want nil", got)
	}

	if err := sessions.DeleteByID(ctx, "active-session"); err != nil {
		t.Fatalf("DeleteByID() error = %v", err)
	}
	if got, _ := sessions.FindByID(ctx, "active-session"); got != nil {
		t.Error("削除済みセッションが取得できた")
	}
	if err := sessions.DeleteByID(ctx, "active-session"); err != nil {
		t.Errorf("存在しないセッションの削除でエラー: %v", err)
	}

	if err := sessions.DeleteByUserID(ctx, user.ID); err != nil {
		t.Fatalf("DeleteByUserID() error = %v", err)
	}
	var count int
	if err := db.QueryRow("SELECT count(*) FROM sessions WHERE user_id = $1", user.ID).Scan(&count); err != nil {
		t.Fatalf("count sessions: %v", err)
	}
	if count != 0 {
		t.Errorf("sessions = %d, want 0", count)
	}
}

func TestPostgresProgressRepo_UpsertAndList(t *testing.T) {
	db := setupRepoTestDB(t)
	ctx := context.Background()
	users := NewPostgresUserRepo(db)
	progress := NewPostgresProgressRepo(db)

	user, identity := newTestUser("grace@example.com", "Grace")
	if err := users.CreateWithIdentity(ctx, user, identity); err != nil {
		t.Fatalf("CreateWithIdentity() error = %v", err)
	}

	for _, p := range []*model.Progress{
		{UserID: user.ID, Skill: "javascript", Percent: 45},
		{UserID: user.ID, Skill: "css", Percent: 60},
		{UserID: user.ID, Skill: "css", Percent: 100, Completed: true},
	} {
		if _, err := progress.Upsert(ctx, p); err != nil {
			t.Fatalf("Upsert(%s) error = %v", p.Skill, err)
		}
	}

	records, err := progress.ListByUserID(ctx, user.ID)
	if err != nil {
		t.Fatalf("ListByUserID() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("len(records) = %d, want 2", len(records))
	}
	if records[0].Skill != "css" || records[0].Percent != 100 || !records[0].Completed {
		t.Errorf("records[0] = %+v", records[0])
	}
	if records[1].Skill != "javascript" || records[1].Percent != 45 {
		t.Errorf("records[1] = %+v", records[1])
	}

	if _, err := progress.Upsert(ctx, &model.Progress{UserID: user.ID, Skill: "html", Percent: 150}); err == nil {
		t.Error("範囲外の進捗率が保存された")
	}
}
