package cmd

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bazarteer/bazaar/internal/order"
	"github.com/bazarteer/bazaar/internal/profile"
	"github.com/bazarteer/bazaar/internal/publish"
)

// executeCommand runs a cobra command with the given args and captures combined output.
// root must be rootCmd; run also flushes logs and metrics.
func executeCommand(root *cobra.Command, args ...string) (output string, err error) {
	return executeWithInput(root, "", args...)
}

func executeWithInput(root *cobra.Command, input string, args ...string) (output string, err error) {
	resetFlagVars()
	buf := new(bytes.Buffer)
	root.SetIn(strings.NewReader(input))
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err = run()
	return buf.String(), err
}

// resetFlagVars restores flag-bound globals, which cobra does not reset
// between executions.
func resetFlagVars() {
	loginUsername, loginPassword = "", ""
	signupName, signupSurname, signupUsername, signupPassword, signupConfirm = "", "", "", "", ""
	feedPlain, feedFormat, feedPages = false, "", 1
	capturePhoto, captureGallery = false, nil
	publishTitle, publishPrice, publishDescription = "", "", ""
	publishCondition, publishLocation, publishStock, publishCapture = "", "", publish.DefaultStock, false
	orderProduct, orderSeller, orderDryRun = "", "", false
	orderForm = order.Form{}
}

// fakeAPI records the requests the commands make.
type fakeAPI struct {
	srv *httptest.Server

	mu       sync.Mutex
	hits     map[string]int
	auth     []string
	blobs    []string
	publish  map[string]any
	order    map[string]any
	orderErr bool
	token    string
	userIDs  []string
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	f := &fakeAPI{hits: map[string]int{}}
	f.srv = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeAPI) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.hits[r.URL.Path]++
	if a := r.Header.Get("Authorization"); a != "" {
		f.auth = append(f.auth, a)
	}
	if id := r.URL.Query().Get("userId"); id != "" {
		f.userIDs = append(f.userIDs, id)
	}
	token := f.token
	f.mu.Unlock()
	if token == "" {
		token = "tok_abc"
	}

	switch {
	case r.URL.Path == "/user/login":
		_, _ = io.WriteString(w, `"`+token+`"`)
	case r.URL.Path == "/product/getRecommended":
		_, _ = io.WriteString(w, `{"products":[
			{"id":1,"name":"Desk lamp","price":12.5,"ownerId":3,"ownerUsername":"ana","content":["https://b/1.jpg","https://b/2.jpg"]},
			{"id":2,"name":"Road bike","price":300,"ownerId":4,"content":["https://b/ride.MP4?sig=x"]}]}`)
	case r.URL.Path == "/product/getProductsByOwner":
		_, _ = io.WriteString(w, `[{"id":7,"name":"Armchair","price":100,"ownerId":3,"location":"Koper","content":["https://b/chair.jpg"]},
			{"id":8,"name":"Side table","price":40,"ownerId":3,"location":"Koper","content":["https://b/table.jpg"]}]`)
	case r.URL.Path == "/user/getById":
		_, _ = io.WriteString(w, `{"id":3,"username":"ana","name":"Ana","surname":"Novak","bio":"","profilePic":"","num_sales":4}`)
	case r.URL.Path == "/product/generate-upload-url":
		name := r.URL.Query().Get("filename")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"uploadUrl": f.srv.URL + "/blob/" + name + "?sig=1",
			"blobUrl":   "https://cdn.example/" + name,
		})
	case strings.HasPrefix(r.URL.Path, "/blob/") && r.Method == http.MethodPut:
		f.mu.Lock()
		f.blobs = append(f.blobs, strings.TrimPrefix(r.URL.Path, "/blob/"))
		f.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
	case r.URL.Path == "/product/publish":
		f.mu.Lock()
		_ = json.NewDecoder(r.Body).Decode(&f.publish)
		f.mu.Unlock()
	case r.URL.Path == "/order/placeOrder":
		f.mu.Lock()
		_ = json.NewDecoder(r.Body).Decode(&f.order)
		bad := f.orderErr
		f.mu.Unlock()
		if bad {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error":"card declined"}`)
		}
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeAPI) count(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[path]
}

// isolate points every bazaar path at temp dirs and the API at f.
func isolate(t *testing.T, f *fakeAPI) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_DATA_HOME", filepath.Join(home, "data"))
	t.Setenv("XDG_STATE_HOME", filepath.Join(home, "state"))
	t.Setenv("BAZAAR_API_BASE_URL", f.srv.URL)
	t.Setenv("BAZAAR_MAX_RETRIES", "0")

	p := profile.Defaults()
	p.Billing = profile.Billing{Email: "ana@example.com", PostalCode: "6000", City: "Koper", Country: "Slovenia"}
	require.NoError(t, profile.Save(&p))
	return home
}

func login(t *testing.T) {
	t.Helper()
	out, err := executeCommand(rootCmd, "login", "-u", "alice", "-p", "secret123")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Signed in as alice")
}

func TestLoginThenFeedCarriesBearer(t *testing.T) {
	f := newFakeAPI(t)
	isolate(t, f)
	login(t)

	out, err := executeCommand(rootCmd, "feed", "--format", "json")
	require.NoError(t, err, out)

	var page struct {
		Items []struct {
			ID       string `json:"id"`
			Kind     string `json:"kind"`
			VideoURL string `json:"video_url"`
		} `json:"items"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &page), out)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "slideshow", page.Items[0].Kind)
	assert.Equal(t, "video", page.Items[1].Kind)
	assert.Equal(t, "https://b/ride.MP4?sig=x", page.Items[1].VideoURL)

	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Contains(t, f.auth, "Bearer tok_abc")
}

func TestFeedRequiresLogin(t *testing.T) {
	f := newFakeAPI(t)
	isolate(t, f)

	_, err := executeCommand(rootCmd, "feed", "--plain")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not logged in")
	assert.Zero(t, f.count("/product/getRecommended"))
}

func TestLogoutBlocksAuthenticatedCalls(t *testing.T) {
	f := newFakeAPI(t)
	isolate(t, f)
	login(t)

	out, err := executeCommand(rootCmd, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "User: alice (id 0)")

	_, err = executeCommand(rootCmd, "logout")
	require.NoError(t, err)

	out, err = executeCommand(rootCmd, "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "not logged in")

	_, err = executeCommand(rootCmd, "profile")
	assert.Error(t, err)
	assert.Zero(t, f.count("/user/getById"))
}

func TestPublishInvalidDraftMakesNoCalls(t *testing.T) {
	f := newFakeAPI(t)
	home := isolate(t, f)
	login(t)
	img := filepath.Join(home, "a.jpg")
	require.NoError(t, os.WriteFile(img, []byte{0xff, 0xd8, 0xff, 0xe0}, 0o600))

	_, err := executeCommand(rootCmd, "publish", "--title", "", "--price", "9.99", img)
	require.Error(t, err)
	assert.Equal(t, "Please enter a title", err.Error())

	_, err = executeCommand(rootCmd, "publish", "--title", "Lamp", "--price", "abc", img)
	require.Error(t, err)
	assert.Equal(t, "Please enter a valid price", err.Error())

	assert.Zero(t, f.count("/product/generate-upload-url"))
	assert.Zero(t, f.count("/product/publish"))
}

func TestPublishGalleryKeepsOrder(t *testing.T) {
	f := newFakeAPI(t)
	home := isolate(t, f)
	login(t)

	var paths []string
	for _, name := range []string{"one.jpg", "two.png", "three.jpg"} {
		p := filepath.Join(home, name)
		require.NoError(t, os.WriteFile(p, []byte("image "+name), 0o600))
		paths = append(paths, p)
	}

	args := append([]string{"publish", "--title", "  Lamp  ", "--price", "12.5", "--description", "Brass"}, paths...)
	out, err := executeCommand(rootCmd, args...)
	require.NoError(t, err, out)
	assert.Contains(t, out, `Listed "Lamp" for €12.50`)

	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Len(t, f.blobs, 3)
	require.NotNil(t, f.publish)
	urls, _ := f.publish["content_urls"].([]any)
	require.Len(t, urls, 3)
	for i, u := range urls {
		assert.Contains(t, u, "_"+string(rune('0'+i))+filepath.Ext(paths[i]), "gallery order")
	}
	assert.Equal(t, "Lamp", f.publish["name"])
	assert.Equal(t, "Ljubljana", f.publish["location"])
	assert.Equal(t, "NEW", f.publish["condition"])
}

func TestOrderDryRunShowsQuote(t *testing.T) {
	f := newFakeAPI(t)
	isolate(t, f)
	login(t)

	out, err := executeCommand(rootCmd, "order", "--product", "7", "--seller", "3", "--dry-run")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Armchair")
	assert.Contains(t, out, "134.20")
	assert.Zero(t, f.count("/order/placeOrder"))
}

func TestOrderUsesProfileBilling(t *testing.T) {
	f := newFakeAPI(t)
	isolate(t, f)
	login(t)

	_, err := executeCommand(rootCmd, "order", "--product", "7", "--seller", "3")
	require.Error(t, err)
	assert.Equal(t, "Please fill in all card details", err.Error())
	assert.Zero(t, f.count("/order/placeOrder"))

	out, err := executeCommand(rootCmd, "order", "--product", "7", "--seller", "3",
		"--card", "4111 1111 1111 1111", "--expiry", "1228", "--cvv", "1234")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Order placed")

	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Equal(t, "Koper, Slovenia", f.order["customerLocation"])
	assert.Equal(t, "4111 1111 1111 1111", f.order["cardNum"])
	assert.Equal(t, "12/28", f.order["expiry"])
	assert.Equal(t, "123", f.order["cvv"])
	assert.Equal(t, "3", f.order["sellerId"])
	assert.InDelta(t, 134.2, f.order["finalPrice"], 0.001)
}

func TestOrderCardRejected(t *testing.T) {
	f := newFakeAPI(t)
	isolate(t, f)
	login(t)
	f.orderErr = true

	_, err := executeCommand(rootCmd, "order", "--product", "7", "--seller", "3",
		"--card", "4111111111111111", "--expiry", "12/28", "--cvv", "123")
	require.Error(t, err)
	assert.Equal(t, "Card details are incorrect!", err.Error())
}

func TestProfileShowsListings(t *testing.T) {
	f := newFakeAPI(t)
	isolate(t, f)
	login(t)

	out, err := executeCommand(rootCmd, "profile", "3", "--format", "markdown")
	require.NoError(t, err, out)
	assert.Contains(t, out, "## Ana Novak (@ana)")
	assert.Contains(t, out, "- Sales: 4")
	assert.Contains(t, out, "- Posts: 2")
	assert.Contains(t, out, "Armchair")
	assert.Contains(t, out, "Side table")
}

func TestOwnProfileLetsServerResolveUser(t *testing.T) {
	f := newFakeAPI(t)
	isolate(t, f)
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "alice"}).SignedString([]byte("k"))
	require.NoError(t, err)
	f.token = tok
	login(t)

	out, err := executeCommand(rootCmd, "profile", "--format", "markdown")
	require.NoError(t, err, out)
	assert.Equal(t, []string{"0", "0"}, f.userIDs)
	assert.Contains(t, out, "- Posts: 2")
}

func TestMetricsTextfileWritten(t *testing.T) {
	f := newFakeAPI(t)
	home := isolate(t, f)
	path := filepath.Join(home, "bazaar.prom")
	t.Setenv("BAZAAR_METRICS_FILE", path)

	login(t)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `bazaar_api_requests_total{code="200",endpoint="login"} 1`)
}

func TestMetricsTextfileWrittenWhenCommandFails(t *testing.T) {
	f := newFakeAPI(t)
	home := isolate(t, f)
	path := filepath.Join(home, "bazaar.prom")
	t.Setenv("BAZAAR_METRICS_FILE", path)
	login(t)
	f.orderErr = true

	_, err := executeCommand(rootCmd, "order", "--product", "7", "--seller", "3",
		"--card", "4111111111111111", "--expiry", "12/28", "--cvv", "123")
	require.Error(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `bazaar_api_requests_total{code="400",endpoint="place_order"} 1`)
}

func TestSetupSavesProfile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	answers := "Maribor\nused\njson\nana@example.com\n2000\nMaribor\nSlovenia\n\n"
	out, err := executeWithInput(rootCmd, answers, "setup")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Profile saved")

	p, err := profile.Load()
	require.NoError(t, err)
	assert.Equal(t, "Maribor", p.Location)
	assert.Equal(t, "USED", p.Condition)
	assert.Equal(t, "json", p.DefaultFormat)
	assert.Equal(t, "Slovenia", p.Billing.Country)
}
