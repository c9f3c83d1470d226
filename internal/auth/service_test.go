package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/rajivgeraev/flippy-core/internal/apperr"
	"github.com/rajivgeraev/flippy-core/internal/db"
	"github.com/rajivgeraev/flippy-core/internal/models"
	"github.com/rajivgeraev/flippy-core/internal/utils"
)

type fakeUsers struct {
	byEmail  map[string]models.User
	password string
	upserts  int
}

func (f *fakeUsers) Create(_ context.Context, reg models.Registration) (models.User, error) {
	if _, ok := f.byEmail[reg.Email]; ok {
		return models.User{}, apperr.Conflict("Пользователь с таким email уже существует")
	}
	u := models.User{ID: uuid.New(), Email: reg.Email, Username: reg.Username}
	f.byEmail[reg.Email] = u
	f.password = reg.Password
	return u, nil
}

func (f *fakeUsers) Authenticate(_ context.Context, email, password string) (models.User, error) {
	u, ok := f.byEmail[email]
	if !ok || password != f.password {
		return models.User{}, apperr.Unauthorized("Неверный email или пароль")
	}
	return u, nil
}

func (f *fakeUsers) UpsertTelegramUser(context.Context, db.TelegramProfile) (models.User, error) {
	f.upserts++
	return models.User{ID: uuid.New()}, nil
}

func (f *fakeUsers) Update(_ context.Context, u models.User) (models.User, error) { return u, nil }

func (f *fakeUsers) List(context.Context) ([]models.User, error) {
	out := make([]models.User, 0, len(f.byEmail))
	for _, u := range f.byEmail {
		out = append(out, u)
	}
	return out, nil
}

func newService() (*Service, *fakeUsers, *utils.JWTService) {
	users := &fakeUsers{byEmail: map[string]models.User{}}
	jwt := utils.NewJWTService("secret", time.Hour)
	return NewService(users, jwt, "123:abc"), users, jwt
}

func TestRegisterThenLogin(t *testing.T) {
	svc, _, jwt := newService()
	ctx := context.Background()

	reg := models.Registration{Email: "alice@example.com", Password: "password1", Username: "alice"}
	user, token, err := svc.Register(ctx, reg)
	if err != nil {
		t.Fatal(err)
	}
	if id, err := jwt.ExtractUserID(token); err != nil || id != user.ID {
		t.Fatalf("token subject = %s, %v; want %s", id, err, user.ID)
	}
	if _, _, err := svc.Register(ctx, reg); apperr.KindOf(err) != apperr.KindConflict {
		t.Fatalf("duplicate email must conflict, got %v", err)
	}

	got, _, err := svc.Login(ctx, models.Credentials{Email: reg.Email, Password: reg.Password})
	if err != nil || got.ID != user.ID {
		t.Fatalf("Login = %+v, %v", got, err)
	}
	if _, _, err := svc.Login(ctx, models.Credentials{Email: reg.Email, Password: "wrong-pass"}); apperr.KindOf(err) != apperr.KindAuthorization {
		t.Fatalf("wrong password must be rejected, got %v", err)
	}
}

func TestLoginTelegramRejectsForgedData(t *testing.T) {
	svc, users, _ := newService()

	raw := "query_id=AAH&user=%7B%22id%22%3A1%7D&auth_date=1700000000&hash=deadbeef"
	if _, _, err := svc.LoginTelegram(context.Background(), raw); apperr.KindOf(err) != apperr.KindAuthorization {
		t.Fatalf("forged initData must be rejected, got %v", err)
	}
	if users.upserts != 0 {
		t.Fatal("rejected login must not touch the user store")
	}
}
