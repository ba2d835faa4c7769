package engine_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xef5000/UltimateLogger/logstore"
	"github.com/xef5000/UltimateLogger/logstore/engine"
	. "github.com/xef5000/UltimateLogger/testutil/helper" //nolint:revive
)

type chatEvent struct {
	Player    string
	Message   string
	Cancelled bool
}

func chatDefinition() logstore.DefinitionFunc {
	return logstore.DefinitionFunc{
		TypeID: "player_chat",
		Predicate: func(source any) bool {
			event, ok := source.(chatEvent)
			return ok && !event.Cancelled
		},
		Extractor: func(source any) logstore.Payload {
			event := source.(chatEvent)

			return logstore.NewPayload(
				logstore.StringField("player_name", event.Player),
				logstore.StringField("message", event.Message),
			)
		},
		Parameters: []logstore.Parameter{
			{Key: "player_name", DisplayName: "Player Name", Type: logstore.ParameterString},
			{Key: "message", DisplayName: "Message", Type: logstore.ParameterString},
		},
	}
}

func Test_Engine_Capture_EnqueuesRecordsTheDefinitionAccepts(t *testing.T) {
	// setup
	ctx := context.Background()
	e := newEngine(t)
	require.True(t, e.Register(chatDefinition()))

	// act
	accepted, acceptedOK := e.Capture("player_chat", chatEvent{Player: "Steve", Message: "hi"})
	_, cancelledOK := e.Capture("player_chat", chatEvent{Player: "Alex", Cancelled: true})
	_, unknownOK := e.Capture("block_break", chatEvent{Player: "Steve"})
	e.Flush(ctx)

	// assert
	assert.True(t, acceptedOK)
	assert.False(t, cancelledOK)
	assert.False(t, unknownOK)

	record, err := e.GetByID(ctx, accepted.ID())
	require.NoError(t, err)
	assert.Equal(t, "player_chat", record.Type)

	player, ok := record.Payload.Get("player_name")
	require.True(t, ok)
	assert.Equal(t, "Steve", player.String())
}

func Test_Engine_Register_WhenTypeDisabled_SkipsDefinition(t *testing.T) {
	// setup
	testHandler := NewLogHandlerSpy(false)
	e := newEngine(t, engine.WithDisabledTypes("player_chat"), engine.WithLogger(slog.New(testHandler)))

	// act
	registered := e.Register(chatDefinition())
	_, captured := e.Capture("player_chat", chatEvent{Player: "Steve"})

	// assert
	assert.False(t, registered)
	assert.False(t, captured)
	assert.Equal(t, 0, e.QueueDepth())
	assert.True(t,
		testHandler.HasInfoLogWithMessage("logstore operation: definition skipped, type disabled").
			WithAttribute("log_type", "player_chat").
			Assert(),
	)
}

func Test_Engine_ListKnownTypes_MergesRegisteredAndStoredTypes(t *testing.T) {
	// setup
	e := newEngine(t)
	e.Register(chatDefinition())

	// arrange
	givenPersisted(t, e, FixtureUserLogin("alice", 1), FixtureOrderPlaced("A1", 1, "DE"), FixtureUserLogin("bob", 2))

	// act
	types, err := e.ListKnownTypes(context.Background())

	// assert
	require.NoError(t, err)
	assert.Equal(t, []string{FixtureTypeOrderPlaced, "player_chat", FixtureTypeUserLogin}, types)
}

func Test_Engine_FilterableParameters(t *testing.T) {
	// setup
	e := newEngine(t)
	e.Register(chatDefinition())

	// act
	parameters, ok := e.FilterableParameters("player_chat")
	_, unknownOK := e.FilterableParameters("block_break")

	// assert
	require.True(t, ok)
	assert.False(t, unknownOK)
	require.Len(t, parameters, 2)
	assert.Equal(t, "Player Name", parameters[0].DisplayName)
}

func Test_Engine_Stats(t *testing.T) {
	// setup
	e := newEngine(t)

	// arrange
	e.Enqueue(FixtureUserLogin("alice", 1))
	e.Enqueue(FixtureUserLogin("bob", 2))

	// act
	stats := e.Stats()

	// assert
	assert.Equal(t, engine.Stats{QueueDepth: 2, CacheSize: 0}, stats)
}

func Test_Engine_Submit_WhenTypeDisabled_RefusesRecord(t *testing.T) {
	// setup
	ctx := context.Background()
	e := newEngine(t, engine.WithDisabledTypes("player_chat"))

	// act
	_, disabledOK := e.Submit("player_chat", logstore.NewPayload(logstore.StringField("message", "hi")))
	receipt, enabledOK := e.Submit("block_break", logstore.NewPayload(logstore.StringField("block", "stone")))
	e.Flush(ctx)

	// assert
	assert.False(t, disabledOK)
	require.True(t, enabledOK)
	assert.NotEqual(t, logstore.UnsetID, receipt.ID())
	assert.Equal(t, 0, e.QueueDepth())
}
