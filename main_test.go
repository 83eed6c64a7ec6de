package main

import (
	"context"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/twirper/twirper/internal/config"
	"github.com/twirper/twirper/model"
)

// Setup a test server with a fresh temp database
func setupTestServer(t *testing.T) (*httptest.Server, *http.Client) {
	t.Helper()
	ts, client, _ := setupTestServerWithStore(t)
	return ts, client
}

func setupTestServerWithStore(t *testing.T) (*httptest.Server, *http.Client, *model.Store) {
	t.Helper()
	ctx := context.Background()

	// Open a temp database
	dsn := "file:" + filepath.Join(t.TempDir(), "twirper-test.db") + "?_foreign_keys=on"
	store, err := model.Open(ctx, model.DriverSQLite, dsn)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	// Create tables
	if err := store.Migrate(ctx); err != nil {
		t.Fatal(err)
	}

	a := newApp(store, &config.Config{SecretKey: "test secret key", PerPage: 30})
	ts := httptest.NewServer(a.router())
	t.Cleanup(ts.Close)

	// Client with cookie jar, follows redirects automatically
	jar, _ := cookiejar.New(nil)
	client := ts.Client()
	client.Jar = jar

	return ts, client, store
}

// Helper: read response body as string
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return string(body)
}

// Helper: register a user
func register(t *testing.T, ts *httptest.Server, client *http.Client, username, password, password2, email string) string {
	t.Helper()
	if password2 == "" {
		password2 = password
	}
	if email == "" {
		email = username + "@example.com"
	}
	resp, err := client.PostForm(ts.URL+"/register", url.Values{
		"username":  {username},
		"password":  {password},
		"password2": {password2},
		"email":     {email},
	})
	if err != nil {
		t.Fatal(err)
	}
	return readBody(t, resp)
}

// Helper: login
func login(t *testing.T, ts *httptest.Server, client *http.Client, username, password string) string {
	t.Helper()
	resp, err := client.PostForm(ts.URL+"/login", url.Values{
		"username": {username},
		"password": {password},
	})
	if err != nil {
		t.Fatal(err)
	}
	return readBody(t, resp)
}

// Helper: register and login
func registerAndLogin(t *testing.T, ts *httptest.Server, client *http.Client, username, password string) string {
	t.Helper()
	register(t, ts, client, username, password, "", "")
	return login(t, ts, client, username, password)
}

// Helper: logout
func doLogout(t *testing.T, ts *httptest.Server, client *http.Client) string {
	t.Helper()
	resp, err := client.Get(ts.URL + "/logout")
	if err != nil {
		t.Fatal(err)
	}
	return readBody(t, resp)
}

// Helper: add a message
func addMessage(t *testing.T, ts *httptest.Server, client *http.Client, text string) string {
	t.Helper()
	resp, err := client.PostForm(ts.URL+"/add_post", url.Values{
		"text": {text},
	})
	if err != nil {
		t.Fatal(err)
	}
	return readBody(t, resp)
}

// Helper: GET a page and return body
func getBody(t *testing.T, ts *httptest.Server, client *http.Client, path string) string {
	t.Helper()
	resp, err := client.Get(ts.URL + path)
	if err != nil {
		t.Fatal(err)
	}
	return readBody(t, resp)
}

// Helper: newest post id of a user
func lastPostID(t *testing.T, store *model.Store, username string) int64 {
	t.Helper()
	ctx := context.Background()
	u, err := store.GetUserByUsername(ctx, username)
	if err != nil {
		t.Fatal(err)
	}
	posts, err := store.ListUserPosts(ctx, u.ID, model.OrderDesc)
	if err != nil {
		t.Fatal(err)
	}
	if len(posts) == 0 {
		t.Fatalf("no posts by %s", username)
	}
	return posts[0].ID
}

func TestRegister(t *testing.T) {
	ts, client := setupTestServer(t)

	// Successful registration
	body := register(t, ts, client, "user1", "default", "", "")
	if !strings.Contains(body, "You were successfully registered and can login now") {
		t.Error("Expected successful registration message")
	}

	// Duplicate username
	body = register(t, ts, client, "user1", "default", "", "")
	if !strings.Contains(body, "The username is already taken") {
		t.Error("Expected 'username already taken' message")
	}

	// Empty username
	body = register(t, ts, client, "", "default", "", "test@example.com")
	if !strings.Contains(body, "You have to enter a username") {
		t.Error("Expected 'enter a username' message")
	}

	// Empty password
	body = register(t, ts, client, "meh", "", "", "meh@example.com")
	if !strings.Contains(body, "You have to enter a password") {
		t.Error("Expected 'enter a password' message")
	}

	// Mismatched passwords
	body = register(t, ts, client, "meh", "x", "y", "meh@example.com")
	if !strings.Contains(body, "The two passwords do not match") {
		t.Error("Expected 'passwords do not match' message")
	}

	// Invalid email
	body = register(t, ts, client, "meh", "foo", "", "broken")
	if !strings.Contains(body, "You have to enter a valid email address") {
		t.Error("Expected 'valid email address' message")
	}

	// Names that would shadow a route or break mentions
	for _, name := range []string{"public", "with space", "at@sign"} {
		body = register(t, ts, client, name, "foo", "", "x@example.com")
		if !strings.Contains(body, "This username is not allowed") {
			t.Errorf("Expected %q to be rejected", name)
		}
	}
}

func TestLoginLogout(t *testing.T) {
	ts, client := setupTestServer(t)

	// Register and login
	body := registerAndLogin(t, ts, client, "user1", "default")
	if !strings.Contains(body, "You were logged in") {
		t.Error("Expected 'logged in' message")
	}

	// Logout
	body = doLogout(t, ts, client)
	if !strings.Contains(body, "You were logged out") {
		t.Error("Expected 'logged out' message")
	}

	// Wrong password
	body = login(t, ts, client, "user1", "wrongpassword")
	if !strings.Contains(body, "Invalid password") {
		t.Error("Expected 'Invalid password' message")
	}

	// Wrong username
	body = login(t, ts, client, "user2", "wrongpassword")
	if !strings.Contains(body, "Invalid username") {
		t.Error("Expected 'Invalid username' message")
	}
}

func TestMessageRecording(t *testing.T) {
	ts, client := setupTestServer(t)

	registerAndLogin(t, ts, client, "foo", "default")
	body := addMessage(t, ts, client, "test message 1")
	if !strings.Contains(body, "Your message was recorded") {
		t.Error("Expected 'message recorded' flash")
	}
	addMessage(t, ts, client, "<test message 2>")

	body = getBody(t, ts, client, "/")
	if !strings.Contains(body, "test message 1") {
		t.Error("Expected 'test message 1' on timeline")
	}
	if !strings.Contains(body, "&lt;test message 2&gt;") {
		t.Error("Expected HTML-escaped message on timeline")
	}
}

func TestAddPostRequiresLogin(t *testing.T) {
	ts, client := setupTestServer(t)

	resp, err := client.PostForm(ts.URL+"/add_post", url.Values{"text": {"anonymous"}})
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", resp.StatusCode)
	}
}

func TestTimelines(t *testing.T) {
	ts, client := setupTestServer(t)

	// foo posts a message
	registerAndLogin(t, ts, client, "foo", "default")
	addMessage(t, ts, client, "the message by foo")
	doLogout(t, ts, client)

	// bar posts a message
	registerAndLogin(t, ts, client, "bar", "default")
	addMessage(t, ts, client, "the message by bar")

	// Public timeline shows both
	body := getBody(t, ts, client, "/public")
	if !strings.Contains(body, "the message by foo") {
		t.Error("Expected foo's message on public timeline")
	}
	if !strings.Contains(body, "the message by bar") {
		t.Error("Expected bar's message on public timeline")
	}

	// Bar's timeline shows only bar's message
	body = getBody(t, ts, client, "/")
	if strings.Contains(body, "the message by foo") {
		t.Error("Did not expect foo's message on bar's timeline")
	}
	if !strings.Contains(body, "the message by bar") {
		t.Error("Expected bar's message on bar's timeline")
	}

	// Follow foo
	body = getBody(t, ts, client, "/foo/follow")
	if !strings.Contains(body, "You are now following") {
		t.Error("Expected follow confirmation message")
	}

	// Now bar's timeline should show both
	body = getBody(t, ts, client, "/")
	if !strings.Contains(body, "the message by foo") {
		t.Error("Expected foo's message after following")
	}
	if !strings.Contains(body, "the message by bar") {
		t.Error("Expected bar's message on own timeline")
	}

	// User page shows only that user's messages
	body = getBody(t, ts, client, "/bar")
	if strings.Contains(body, "the message by foo") {
		t.Error("Did not expect foo's message on bar's user page")
	}
	if !strings.Contains(body, "the message by bar") {
		t.Error("Expected bar's message on bar's user page")
	}

	body = getBody(t, ts, client, "/foo")
	if !strings.Contains(body, "the message by foo") {
		t.Error("Expected foo's message on foo's user page")
	}
	if strings.Contains(body, "the message by bar") {
		t.Error("Did not expect bar's message on foo's user page")
	}

	// Unfollow foo
	body = getBody(t, ts, client, "/foo/unfollow")
	if !strings.Contains(body, "You are no longer following") {
		t.Error("Expected unfollow confirmation message")
	}

	// Bar's timeline should only show bar's message again
	body = getBody(t, ts, client, "/")
	if strings.Contains(body, "the message by foo") {
		t.Error("Did not expect foo's message after unfollowing")
	}
	if !strings.Contains(body, "the message by bar") {
		t.Error("Expected bar's message on own timeline")
	}

	// Following yourself is refused
	body = getBody(t, ts, client, "/bar/follow")
	if !strings.Contains(body, "You cannot follow yourself") {
		t.Error("Expected self-follow to be refused")
	}
}

func TestUnknownUserPage(t *testing.T) {
	ts, client := setupTestServer(t)

	resp, err := client.Get(ts.URL + "/nobody")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", resp.StatusCode)
	}
}

func TestHashtagsAndSearch(t *testing.T) {
	ts, client := setupTestServer(t)

	registerAndLogin(t, ts, client, "foo", "default")
	addMessage(t, ts, client, "learning #golang with #sqlite")
	addMessage(t, ts, client, "nothing tagged here")

	body := getBody(t, ts, client, "/hashtag/golang")
	if !strings.Contains(body, "learning #golang with #sqlite") {
		t.Error("Expected tagged post on hashtag page")
	}
	if strings.Contains(body, "nothing tagged here") {
		t.Error("Did not expect untagged post on hashtag page")
	}
	if !strings.Contains(body, "/hashtag/sqlite") {
		t.Error("Expected related hashtag link")
	}

	body = getBody(t, ts, client, "/search?q=tagged")
	if !strings.Contains(body, "nothing tagged here") {
		t.Error("Expected post in search results")
	}
	if !strings.Contains(body, "No user found.") {
		t.Error("Expected no user in search results")
	}

	body = getBody(t, ts, client, "/search?q=fo")
	if !strings.Contains(body, `href="/foo"`) {
		t.Error("Expected user in search results")
	}
}

func TestPostPageLikesAndDelete(t *testing.T) {
	ts, client, store := setupTestServerWithStore(t)

	registerAndLogin(t, ts, client, "foo", "default")
	addMessage(t, ts, client, "like this one")
	id := lastPostID(t, store, "foo")
	doLogout(t, ts, client)

	registerAndLogin(t, ts, client, "bar", "default")
	postURL := "/post/" + itoa(id)

	body := getBody(t, ts, client, postURL+"/like")
	if !strings.Contains(body, "1 likes") {
		t.Error("Expected one like after liking")
	}
	if !strings.Contains(body, "Unlike") {
		t.Error("Expected unlike link after liking")
	}

	// liking twice keeps a single like
	body = getBody(t, ts, client, postURL+"/like")
	if !strings.Contains(body, "1 likes") {
		t.Error("Expected like to be idempotent")
	}

	// only the author may delete
	resp, err := client.PostForm(ts.URL+postURL+"/delete", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("Expected 403, got %d", resp.StatusCode)
	}

	// reply to the post
	resp, err = client.PostForm(ts.URL+"/add_post", url.Values{"text": {"a reply"}, "responds_to": {itoa(id)}})
	if err != nil {
		t.Fatal(err)
	}
	body = readBody(t, resp)
	if !strings.Contains(body, "a reply") || !strings.Contains(body, "1 responses") {
		t.Error("Expected reply on post page")
	}

	body = getBody(t, ts, client, postURL+"/unlike")
	if !strings.Contains(body, "0 likes") {
		t.Error("Expected no likes after unliking")
	}
	doLogout(t, ts, client)

	login(t, ts, client, "foo", "default")
	resp, err = client.PostForm(ts.URL+postURL+"/delete", nil)
	if err != nil {
		t.Fatal(err)
	}
	body = readBody(t, resp)
	if !strings.Contains(body, "Your message was deleted") {
		t.Error("Expected deletion flash")
	}

	resp, err = client.Get(ts.URL + postURL)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 for deleted post, got %d", resp.StatusCode)
	}
}

func TestNotificationsPage(t *testing.T) {
	ts, client, store := setupTestServerWithStore(t)

	registerAndLogin(t, ts, client, "foo", "default")
	addMessage(t, ts, client, "hello world")
	id := lastPostID(t, store, "foo")
	doLogout(t, ts, client)

	registerAndLogin(t, ts, client, "bar", "default")
	addMessage(t, ts, client, "hi @foo")
	getBody(t, ts, client, "/foo/follow")
	getBody(t, ts, client, "/post/"+itoa(id)+"/like")
	doLogout(t, ts, client)

	body := login(t, ts, client, "foo", "default")
	if !strings.Contains(body, "Notifications (3)") {
		t.Error("Expected three unread notifications in the menu")
	}

	body = getBody(t, ts, client, "/notifications")
	for _, want := range []string{"followed you", "mentioned you in", "liked your post"} {
		if !strings.Contains(body, want) {
			t.Errorf("Expected %q on notifications page", want)
		}
	}

	// Viewing the page marks everything as seen
	body = getBody(t, ts, client, "/")
	if strings.Contains(body, "Notifications (") {
		t.Error("Expected no unread notifications after viewing them")
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
