package tests

import (
	"errors"
	"fmt"
	"testing"
)

func TestSignupAndLogin(t *testing.T) {
	env := setupTestEnv(t)

	for i := 0; i < 5; i++ {
		username := fmt.Sprintf("user%d", i)
		email := fmt.Sprintf("user%d@mail.com", i)
		password := fmt.Sprintf("user%d_password", i)

		client := env.newClient()
		login, err := client.signup(username, email, password)
		if err != nil {
			t.Fatal(err)
		}

		_, err = client.signup(username, email, password)
		if !errors.Is(err, ErrConflict) {
			t.Fatal("duplicate signup should fail")
		}

		err = client.login(loginInfo{Email: "user@mail.com", Password: password})
		if err == nil {
			t.Fatal("login should fail with wrong email")
		}

		err = client.login(loginInfo{Email: email, Password: "password"})
		if !errors.Is(err, ErrUnauthorized) {
			t.Fatal("login should fail with wrong password")
		}

		err = client.login(login)
		if err != nil {
			t.Fatal(err)
		}

		info, err := client.userInfo()
		if err != nil {
			t.Fatal(err)
		}

		if info.Username != username || info.Email != email || info.Id.String() != client.userId || info.Admin {
			t.Fatalf("invalid info %v", info)
		}
	}
}

func TestAddUser(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}
	user, err := env.newUser("abc")
	if err != nil {
		t.Fatal(err)
	}

	client := env.newClient()

	_, err = user.addUser("xyz", "xyz@mail.com", "123")
	if !errors.Is(err, ErrForbidden) {
		t.Fatal("users cannot add users")
	}

	err = client.login(loginInfo{Email: "xyz@mail.com", Password: "123"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("no login should be created: %v", err)
	}

	_, err = admin.addUser("xyz", "xyz@mail.com", "123")
	if err != nil {
		t.Fatal(err)
	}

	err = client.login(loginInfo{Email: "xyz@mail.com", Password: "123"})
	if err != nil {
		t.Fatal("new user should be created")
	}
}

func TestPromoteAndDemoteAdmin(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}
	user, err := env.newUser("abc")
	if err != nil {
		t.Fatal(err)
	}

	err = user.promoteAdmin(user.userId)
	if !errors.Is(err, ErrForbidden) {
		t.Fatal("users cannot promote themselves")
	}

	err = admin.promoteAdmin(user.userId)
	if err != nil {
		t.Fatal(err)
	}

	info, err := user.userInfo()
	if err != nil {
		t.Fatal(err)
	}
	if !info.Admin {
		t.Fatal("user should be an admin after promotion")
	}

	err = admin.demoteAdmin(user.userId)
	if err != nil {
		t.Fatal(err)
	}

	info, err = user.userInfo()
	if err != nil {
		t.Fatal(err)
	}
	if info.Admin {
		t.Fatal("user should not be an admin after demotion")
	}

	// The last admin cannot demote themselves.
	err = admin.demoteAdmin(admin.userId)
	if err == nil {
		t.Fatal("demoting the last admin should fail")
	}
}

func TestListUsers(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"abc", "xyz"} {
		if _, err := env.newUser(name); err != nil {
			t.Fatal(err)
		}
	}

	users, err := admin.listUsers()
	if err != nil {
		t.Fatal(err)
	}

	if len(users) != 3 {
		t.Fatalf("expected 3 users, got %d", len(users))
	}
}
