package neo4j

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	driver "github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"city_router/pkg/catalog"
	"city_router/pkg/graph"
)

// memoryClient replays canned results and records every committed query.
// Statements run through ExecuteWriteTx are staged and only recorded when the
// transaction commits.
type memoryClient struct {
	mu           sync.Mutex
	readResults  []Result
	writeResults []Result
	readCalls    []executedQuery
	writeCalls   []executedQuery
	err          error
	failOn       string
	failErr      error
}

type executedQuery struct {
	Query  string
	Params map[string]any
}

func (m *memoryClient) pushRead(records ...Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readResults = append(m.readResults, Result{Records: records})
}

func (m *memoryClient) pushWrite(records ...Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeResults = append(m.writeResults, Result{Records: records})
}

func (m *memoryClient) ExecuteWrite(_ context.Context, cypher string, params map[string]any) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return Result{}, m.err
	}
	res, err := m.write(cypher, params)
	if err != nil {
		return Result{}, err
	}
	m.writeCalls = append(m.writeCalls, executedQuery{Query: cypher, Params: params})
	return res, nil
}

func (m *memoryClient) ExecuteRead(_ context.Context, cypher string, params map[string]any) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return Result{}, m.err
	}
	return m.read(cypher, params), nil
}

func (m *memoryClient) ExecuteWriteTx(_ context.Context, work func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	tx := &memoryTx{client: m}
	if err := work(tx); err != nil {
		return err
	}
	m.writeCalls = append(m.writeCalls, tx.staged...)
	return nil
}

func (m *memoryClient) VerifyConnectivity(context.Context) error { return nil }

func (m *memoryClient) Close(context.Context) error { return nil }

func (m *memoryClient) read(cypher string, params map[string]any) Result {
	m.readCalls = append(m.readCalls, executedQuery{Query: cypher, Params: params})
	if len(m.readResults) == 0 {
		return Result{}
	}
	res := m.readResults[0]
	m.readResults = m.readResults[1:]
	return res
}

func (m *memoryClient) write(cypher string, params map[string]any) (Result, error) {
	if m.failOn != "" && cypher == m.failOn {
		return Result{}, m.failErr
	}
	if len(m.writeResults) > 0 {
		res := m.writeResults[0]
		m.writeResults = m.writeResults[1:]
		return res, nil
	}
	switch {
	case strings.Contains(cypher, "RETURN c.id AS id"):
		return Result{Records: []Record{{"id": params["id"]}}}, nil
	case cypher == cypherUpsertRoad:
		return Result{Records: []Record{{"distance": params["distance"]}}}, nil
	}
	return Result{}, nil
}

// memoryTx serves lookups from the read queue and stages writes.
type memoryTx struct {
	client *memoryClient
	staged []executedQuery
}

func (tx *memoryTx) Run(_ context.Context, cypher string, params map[string]any) (Result, error) {
	if cypher == cypherCount {
		return tx.client.read(cypher, params), nil
	}
	res, err := tx.client.write(cypher, params)
	if err != nil {
		return Result{}, err
	}
	tx.staged = append(tx.staged, executedQuery{Query: cypher, Params: params})
	return res, nil
}

func count(n int64) Record { return Record{"count": n} }

func ptr[T any](v T) *T { return &v }

func TestAddCity(t *testing.T) {
	client := &memoryClient{}
	client.pushRead(count(0)) // new id is free
	client.pushRead(count(1)) // destination exists
	store := New(client)

	c, err := store.AddCity(context.Background(), catalog.CityInput{
		ID: ptr(int64(4)), Name: "Utrecht", Lat: ptr(52.09), Distance: ptr(int64(40)), ToID: ptr(int64(1)),
	})
	require.NoError(t, err)
	assert.Equal(t, []graph.CityEdge{{ToID: 1, Weight: 40}}, c.Edges)

	require.Len(t, client.writeCalls, 2)
	assert.Equal(t, cypherCreate, client.writeCalls[0].Query)
	assert.Equal(t, map[string]any{"id": int64(4), "name": "Utrecht", "lat": 52.09, "lon": 0.0}, client.writeCalls[0].Params)
	assert.Equal(t, cypherUpsertRoad, client.writeCalls[1].Query)
	assert.Equal(t, map[string]any{"from": int64(4), "to": int64(1), "distance": int64(40)}, client.writeCalls[1].Params)
}

func TestAddCityErrors(t *testing.T) {
	ctx := context.Background()

	client := &memoryClient{}
	client.pushRead(count(1))
	_, err := New(client).AddCity(ctx, catalog.CityInput{ID: ptr(int64(1)), Name: "dup"})
	assert.ErrorIs(t, err, catalog.ErrDuplicateCity)
	assert.Empty(t, client.writeCalls)

	client = &memoryClient{}
	client.pushRead(count(0))
	client.pushRead(count(0))
	_, err = New(client).AddCity(ctx, catalog.CityInput{ID: ptr(int64(2)), Name: "X", Distance: ptr(int64(1)), ToID: ptr(int64(9))})
	assert.ErrorIs(t, err, catalog.ErrNonExistingCity)
	assert.Empty(t, client.writeCalls)

	client = &memoryClient{}
	_, err = New(client).AddCity(ctx, catalog.CityInput{Name: "no id"})
	assert.ErrorIs(t, err, catalog.ErrMandatoryAttribute)
	assert.Empty(t, client.readCalls)
}

func TestListCitiesDecodes(t *testing.T) {
	client := &memoryClient{}
	client.pushRead(
		Record{"id": int64(2), "name": "B", "lat": 1.5, "lon": 2.5, "roads": []any{}},
		Record{"id": int64(1), "name": "A", "lat": 0.0, "lon": 0.0, "roads": []any{
			map[string]any{"to": int64(2), "distance": int64(7)},
			map[string]any{"to": int64(1), "distance": int64(0)},
		}},
	)

	cities, err := New(client).ListCities(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []graph.CityRecord{
		{ID: 1, Name: "A", Edges: []graph.CityEdge{{ToID: 1, Weight: 0}, {ToID: 2, Weight: 7}}},
		{ID: 2, Name: "B", Lat: 1.5, Lon: 2.5},
	}, cities)
}

func TestGetCityNotFound(t *testing.T) {
	client := &memoryClient{}
	_, err := New(client).GetCity(context.Background(), 3)
	assert.ErrorIs(t, err, catalog.ErrCityNotFound)
	require.Len(t, client.readCalls, 1)
	assert.Contains(t, client.readCalls[0].Query, "WHERE c.id = $id")
}

func TestCountCities(t *testing.T) {
	client := &memoryClient{}
	client.pushRead(count(5))
	n, err := New(client).CountCities(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestUpdateCity(t *testing.T) {
	client := &memoryClient{}
	client.pushRead(count(1)) // destination exists
	client.pushRead(Record{"id": int64(3), "name": "New", "lat": 0.0, "lon": 0.0, "roads": []any{
		map[string]any{"to": int64(1), "distance": int64(12)},
	}})

	c, err := New(client).UpdateCity(context.Background(), catalog.CityInput{
		ID: ptr(int64(3)), Name: "New", Distance: ptr(int64(12)), ToID: ptr(int64(1)),
	})
	require.NoError(t, err)
	assert.Equal(t, "New", c.Name)
	assert.Equal(t, []graph.CityEdge{{ToID: 1, Weight: 12}}, c.Edges)

	require.Len(t, client.writeCalls, 2)
	assert.Nil(t, client.writeCalls[0].Params["lat"], "omitted coordinates are passed as null")
}

func TestAddDistanceErrors(t *testing.T) {
	ctx := context.Background()

	client := &memoryClient{}
	assert.ErrorIs(t, New(client).AddDistance(ctx, 1, 2, -5), catalog.ErrInvalidDistance)
	assert.Empty(t, client.readCalls)

	client = &memoryClient{}
	client.pushRead(count(0))
	assert.ErrorIs(t, New(client).AddDistance(ctx, 1, 2, 5), catalog.ErrCityNotFound)

	client = &memoryClient{}
	client.pushRead(count(1))
	client.pushRead(count(0))
	assert.ErrorIs(t, New(client).AddDistance(ctx, 1, 2, 5), catalog.ErrNonExistingCity)
	assert.Empty(t, client.writeCalls)
}

func TestRemoveCity(t *testing.T) {
	client := &memoryClient{}
	client.pushWrite(count(1))
	require.NoError(t, New(client).RemoveCity(context.Background(), 8))
	require.Len(t, client.writeCalls, 1)
	assert.Equal(t, cypherDelete, client.writeCalls[0].Query)

	client = &memoryClient{}
	client.pushWrite(count(0))
	assert.ErrorIs(t, New(client).RemoveCity(context.Background(), 8), catalog.ErrCityNotFound)
	assert.Empty(t, client.writeCalls)
}

func TestImport(t *testing.T) {
	client := &memoryClient{}
	err := New(client).Import(context.Background(), []graph.CityRecord{
		{ID: 2, Name: "B"},
		{ID: 1, Name: "A", Edges: []graph.CityEdge{{ToID: 2, Weight: 9}, {ToID: 2, Weight: 4}}},
	})
	require.NoError(t, err)

	require.Len(t, client.writeCalls, 3)
	assert.Equal(t, cypherDeleteAll, client.writeCalls[0].Query)
	cities := client.writeCalls[1].Params["cities"].([]map[string]any)
	assert.Equal(t, int64(1), cities[0]["id"])
	roads := client.writeCalls[2].Params["roads"].([]map[string]any)
	assert.Equal(t, []map[string]any{{"from": int64(1), "to": int64(2), "distance": int64(4)}}, roads)

	client = &memoryClient{}
	err = New(client).Import(context.Background(), []graph.CityRecord{{ID: 1}, {ID: 1}})
	assert.ErrorIs(t, err, graph.ErrDuplicateNode)
	assert.Empty(t, client.writeCalls)
}

func TestImportRollsBackOnFailure(t *testing.T) {
	records := []graph.CityRecord{
		{ID: 1, Name: "A", Edges: []graph.CityEdge{{ToID: 2, Weight: 3}}},
		{ID: 2, Name: "B"},
	}
	boom := errors.New("write failed")

	for _, failOn := range []string{cypherImportCities, cypherImportRoads} {
		client := &memoryClient{failOn: failOn, failErr: boom}
		err := New(client).Import(context.Background(), records)
		assert.ErrorIs(t, err, boom)
		assert.Empty(t, client.writeCalls, "nothing may commit when %q fails", failOn)
	}
}

func TestAddCityRollsBackRoadFailure(t *testing.T) {
	boom := errors.New("write failed")
	client := &memoryClient{failOn: cypherUpsertRoad, failErr: boom}
	client.pushRead(count(0))
	client.pushRead(count(1))

	_, err := New(client).AddCity(context.Background(), catalog.CityInput{
		ID: ptr(int64(4)), Name: "Utrecht", Distance: ptr(int64(40)), ToID: ptr(int64(1)),
	})
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, client.writeCalls)
}

func TestAddCityDestinationRemovedConcurrently(t *testing.T) {
	client := &memoryClient{}
	client.pushRead(count(0))
	client.pushRead(count(1))
	client.pushWrite() // create
	client.pushWrite() // road upsert matched no destination

	_, err := New(client).AddCity(context.Background(), catalog.CityInput{
		ID: ptr(int64(4)), Name: "Utrecht", Distance: ptr(int64(40)), ToID: ptr(int64(1)),
	})
	assert.ErrorIs(t, err, catalog.ErrNonExistingCity)
	assert.Empty(t, client.writeCalls)
}

func TestAddCityConstraintViolationIsDuplicate(t *testing.T) {
	client := &memoryClient{
		failOn: cypherCreate,
		failErr: &driver.Neo4jError{
			Code: "Neo.ClientError.Schema.ConstraintValidationFailed",
			Msg:  "Node(0) already exists with label `City` and property `id` = 4",
		},
	}
	client.pushRead(count(0))

	_, err := New(client).AddCity(context.Background(), catalog.CityInput{ID: ptr(int64(4)), Name: "Utrecht"})
	assert.ErrorIs(t, err, catalog.ErrDuplicateCity)
	assert.Empty(t, client.writeCalls)
}

func TestClientErrorsAreWrapped(t *testing.T) {
	boom := errors.New("bolt down")
	_, err := New(&memoryClient{err: boom}).ListCities(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestNewClientRequiresURI(t *testing.T) {
	_, err := NewClient(context.Background(), Options{})
	assert.ErrorIs(t, err, ErrMissingURI)
}
