package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cora/internal/contingency"
	"github.com/roach88/cora/internal/guardian"
	"github.com/roach88/cora/internal/ritual"
	"github.com/roach88/cora/internal/testutil"
	"github.com/roach88/cora/internal/verify"
)

// cliFixture runs commands against one database with a fake clock and
// sequential IDs.
type cliFixture struct {
	t     *testing.T
	db    string
	clock *testutil.FakeClock
	ids   *testutil.SequenceGenerator
}

func newCLIFixture(t *testing.T) *cliFixture {
	return &cliFixture{
		t:     t,
		db:    filepath.Join(t.TempDir(), "cora.db"),
		clock: testutil.NewFakeClock(testutil.Epoch),
		ids:   testutil.NewSequenceGenerator("v"),
	}
}

func (f *cliFixture) run(args ...string) (string, error) {
	f.t.Helper()
	opts := &RootOptions{Clock: f.clock, IDs: f.ids}
	cmd := newRootCommand(opts)
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--db", f.db}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func (f *cliFixture) mustRun(args ...string) string {
	f.t.Helper()
	out, err := f.run(args...)
	require.NoError(f.t, err, "cora %s", strings.Join(args, " "))
	return out
}

// decode runs a JSON command and decodes its data payload into v.
func (f *cliFixture) decode(v interface{}, args ...string) {
	f.t.Helper()
	out := f.mustRun(append([]string{"--format", "json"}, args...)...)
	var resp struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	require.NoError(f.t, json.Unmarshal([]byte(out), &resp), out)
	require.Equal(f.t, "ok", resp.Status)
	require.NoError(f.t, json.Unmarshal(resp.Data, v))
}

func (f *cliFixture) newVisitor() string {
	f.t.Helper()
	return strings.TrimSpace(f.mustRun("visitor", "--origin", "qr"))
}

// consecrate walks a visitor through three spaced offers and a matching need.
func (f *cliFixture) consecrate(v string) {
	f.t.Helper()
	offers := []string{
		"ofrezco presencia y ayuda",
		"puedo enseñar guitarra a mi vecino",
		"puedo cuidar plantas de mi barrio",
	}
	for _, text := range offers {
		var resp guardian.Response
		f.decode(&resp, "offer", "--visitor", v, "--dwell", "45", text)
		require.True(f.t, resp.Verified, text)
		f.clock.Advance(42 * time.Hour)
	}

	var resp guardian.Response
	f.decode(&resp, "need", "--visitor", v, "--dwell", "45", "necesito tiempo y apoyo para mi familia")
	require.Equal(f.t, ritual.PhaseConsecrated, resp.Phase)
	require.NotNil(f.t, resp.Consecration)
	require.True(f.t, resp.Consecration.Eligible)
}

func TestVisitorCommand(t *testing.T) {
	f := newCLIFixture(t)

	assert.Equal(t, "v-1", f.newVisitor())
	assert.Equal(t, "v-2", f.newVisitor())

	out := f.mustRun("visitor", "--list")
	assert.Contains(t, out, "v-1")
	assert.Contains(t, out, "v-2")

	var state ritual.InhabitantState
	f.decode(&state, "state", "--visitor", "v-1")
	assert.Equal(t, ritual.PhaseOffering, state.Phase)
}

func TestVisitorListEmpty(t *testing.T) {
	f := newCLIFixture(t)
	assert.Contains(t, f.mustRun("visitor", "--list"), "No visitors registered.")
}

func TestCommandsRequireVisitor(t *testing.T) {
	f := newCLIFixture(t)

	for _, args := range [][]string{
		{"offer", "--dwell", "45", "algo"},
		{"need", "--dwell", "45", "algo"},
		{"signal", "gracias"},
		{"state"},
		{"stats"},
		{"log"},
		{"session", "start"},
		{"niche", "register", "guitarra"},
	} {
		_, err := f.run(args...)
		require.Error(t, err, args)
		assert.Contains(t, err.Error(), "visitor required", args)
		assert.Equal(t, ExitCommandError, GetExitCode(err), args)
	}
}

func TestOfferWithoutDwellNeedsSession(t *testing.T) {
	f := newCLIFixture(t)
	v := f.newVisitor()

	_, err := f.run("offer", "--visitor", v, "puedo enseñar guitarra a mi vecino")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no dwell time")
}

func TestOfferRejectedThenVerified(t *testing.T) {
	f := newCLIFixture(t)
	v := f.newVisitor()

	var resp guardian.Response
	f.decode(&resp, "offer", "--visitor", v, "--dwell", "10", "puedo enseñar guitarra a mi vecino")
	assert.False(t, resp.Verified)
	assert.Equal(t, ritual.PhaseOffering, resp.Phase)

	out := f.mustRun("offer", "--visitor", v, "--dwell", "45", "puedo enseñar guitarra a mi vecino")
	assert.Contains(t, out, "phase: needing")
	assert.Contains(t, out, "huella:")

	var stats struct {
		Verifications  int `json:"verifications"`
		OffersVerified int `json:"offers_verified"`
	}
	f.decode(&stats, "stats", "--visitor", v)
	assert.Equal(t, 1, stats.Verifications)
	assert.Equal(t, 1, stats.OffersVerified)
}

func TestRitualToSeal(t *testing.T) {
	f := newCLIFixture(t)
	v := f.newVisitor()
	f.consecrate(v)

	f.clock.Advance(time.Hour)
	var resp guardian.Response
	f.decode(&resp, "signal", "--visitor", v, "gracias por tu presencia tan generosa")
	assert.Equal(t, ritual.PhaseSealed, resp.Phase)

	out := f.mustRun("state", "--visitor", v)
	assert.Contains(t, out, "sealed:       true")
	assert.Contains(t, out, "consecrated:  true")

	logOut := f.mustRun("log", "--visitor", v)
	assert.Equal(t, 6, strings.Count(logOut, "\n"), logOut)
}

func TestLogEmpty(t *testing.T) {
	f := newCLIFixture(t)
	assert.Contains(t, f.mustRun("log", "--visitor", "nobody"), "No presences recorded.")
}

func TestVisitorsAreIsolated(t *testing.T) {
	f := newCLIFixture(t)
	a := f.newVisitor()
	b := f.newVisitor()

	f.mustRun("offer", "--visitor", a, "--dwell", "45", "puedo enseñar guitarra a mi vecino")

	var state ritual.InhabitantState
	f.decode(&state, "state", "--visitor", b)
	assert.Equal(t, ritual.PhaseOffering, state.Phase)
	assert.Zero(t, state.OffersCount)

	// The same text is new to another visitor's ledger.
	var resp guardian.Response
	f.decode(&resp, "offer", "--visitor", b, "--dwell", "45", "puedo enseñar guitarra a mi vecino")
	assert.True(t, resp.Verified)
}

func TestScoreCommand(t *testing.T) {
	f := newCLIFixture(t)

	var res ScoreResult
	f.decode(&res, "score", "puedo enseñar guitarra a mi vecino")
	assert.True(t, res.Passes)
	assert.True(t, res.Human)
	assert.Equal(t, verify.Hash("puedo enseñar guitarra a mi vecino"), res.Hash)

	f.decode(&res, "score", "hola")
	assert.False(t, res.Passes)
}

func TestSessionCommands(t *testing.T) {
	f := newCLIFixture(t)
	v := f.newVisitor()

	_, err := f.run("session", "status", "--visitor", v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no open session")

	f.mustRun("session", "start", "--visitor", v)
	f.clock.Advance(65 * time.Second)

	out := f.mustRun("session", "observe", "--visitor", v)
	assert.Contains(t, out, "observed: 65s")
	assert.Contains(t, out, "silences: 2")

	// Dwell is read from the open session.
	var resp guardian.Response
	f.decode(&resp, "offer", "--visitor", v, "puedo enseñar guitarra a mi vecino")
	assert.True(t, resp.Verified)

	out = f.mustRun("session", "status", "--visitor", v)
	assert.Contains(t, out, "writings: 1")

	out = f.mustRun("session", "end", "--visitor", v)
	assert.Contains(t, out, "writings: 1")

	var c struct {
		Sessions int    `json:"sessions"`
		Silences int    `json:"silences"`
		Level    string `json:"level"`
	}
	f.decode(&c, "session", "constancy", "--visitor", v)
	assert.Equal(t, 1, c.Sessions)
	assert.Equal(t, 2, c.Silences)
	assert.NotEmpty(t, c.Level)
}

func TestNicheRegisterRequiresConsecration(t *testing.T) {
	f := newCLIFixture(t)
	v := f.newVisitor()
	f.mustRun("offer", "--visitor", v, "--dwell", "45", "puedo enseñar guitarra a mi vecino")

	_, err := f.run("niche", "register", "--visitor", v, "clases de guitarra")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestNichesAndContingency(t *testing.T) {
	f := newCLIFixture(t)
	v := f.newVisitor()
	f.consecrate(v)

	var offerer struct {
		ID    string `json:"id"`
		Niche string `json:"niche"`
	}
	f.decode(&offerer, "niche", "register", "--visitor", v,
		"escucha y orientación con apoyo psicológico en gestión crisis",
		"tejer una red de apoyo vecinal")
	assert.True(t, strings.HasPrefix(offerer.ID, "OF-"), offerer.ID)

	var m struct {
		TotalOfferers int `json:"total_offerers"`
	}
	f.decode(&m, "niche", "map")
	assert.Equal(t, 1, m.TotalOfferers)

	// Offices default to the visitor's consecration huella.
	var office struct {
		ID                string `json:"id"`
		ResponsibleHuella string `json:"responsible_huella"`
	}
	f.decode(&office, "niche", "office", "create", "--visitor", v, "biblioteca del barrio")
	assert.NotEmpty(t, office.ResponsibleHuella)

	var act struct {
		ThresholdURL string `json:"threshold_url"`
	}
	f.decode(&act, "niche", "office", "activate", office.ID, "--kind", "tarjeta", "--origin", "https://cora.example/umbral")
	assert.True(t, strings.HasPrefix(act.ThresholdURL, "https://cora.example/umbral?activacion=ACT-"), act.ThresholdURL)

	_, err := f.run("niche", "office", "activate", "OSI-missing", "--origin", "https://cora.example")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	var c contingency.Contingency
	f.decode(&c, "contingency", "activate", contingency.KindPersonalEmergency, "Barrio", "Norte", "--urgency", "alta")
	assert.Equal(t, "Barrio Norte", c.Location)
	require.Len(t, c.Convoked, 1)
	assert.Equal(t, offerer.ID, c.Convoked[0].OffererID)

	var list ContingencyList
	f.decode(&list, "contingency", "list")
	require.Len(t, list.Convocations, 1)

	var declined contingency.Response
	f.decode(&declined, "contingency", "respond", list.Convocations[0].ID, "--decline")
	assert.False(t, declined.Accepted)

	var accepted contingency.Response
	f.decode(&accepted, "contingency", "respond", list.Convocations[0].ID, "--visitor", v)
	assert.True(t, accepted.Accepted)
	assert.NotEmpty(t, accepted.AssignedNiche)
	assert.Equal(t, contingency.Instructions, accepted.Instructions)

	_, err = f.run("contingency", "respond", "CONV-missing", "--huella", "H")
	require.Error(t, err)

	var need contingency.EmergencyNeed
	f.decode(&need, "contingency", "need", "agua y comida", "--location", "Barrio Norte")
	assert.NotEmpty(t, need.ID)

	var st contingency.Stats
	f.decode(&st, "contingency", "stats")
	assert.Equal(t, 1, st.ActiveContingencies)
	assert.Equal(t, 1, st.EmergencyNeeds)
	assert.Equal(t, 1, st.Convoked)
}

func TestOfficeCreateRequiresHuella(t *testing.T) {
	f := newCLIFixture(t)
	_, err := f.run("niche", "office", "create", "plaza")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	out := f.mustRun("niche", "office", "create", "--huella", "HC-1", "plaza")
	assert.Contains(t, out, "responsible: HC-1")

	assert.Contains(t, f.mustRun("niche", "office", "list"), "plaza")
}
