package archive

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/csso/fngraph/internal/ctxlog"
	"github.com/csso/fngraph/internal/dtype"
	"github.com/csso/fngraph/internal/graph"
)

// Runner executes one Cypher query and returns the fully buffered result.
// Executor is the production implementation; tests substitute a stub.
type Runner interface {
	Run(ctx context.Context, query string, params map[string]any) (*neo4j.EagerResult, error)
}

// Executor wraps the official driver behind the Runner interface.
type Executor struct {
	driver neo4j.DriverWithContext
	dbName string
}

// NewExecutor connects to a Neo4j instance.
func NewExecutor(uri, username, password, dbName string) (*Executor, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("could not create Neo4j driver: %w", err)
	}
	return &Executor{driver: driver, dbName: dbName}, nil
}

// Verify checks connectivity to the database.
func (e *Executor) Verify(ctx context.Context) error {
	return e.driver.VerifyConnectivity(ctx)
}

// Run executes a Cypher query with ExecuteQuery, which manages sessions and
// transactions itself and buffers all records before returning.
func (e *Executor) Run(ctx context.Context, query string, params map[string]any) (*neo4j.EagerResult, error) {
	result, err := neo4j.ExecuteQuery(
		ctx,
		e.driver,
		query,
		params,
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(e.dbName),
	)
	if err != nil {
		return nil, fmt.Errorf("error executing neo4j query: %w", err)
	}
	return result, nil
}

// Close releases the driver's connection pool.
func (e *Executor) Close(ctx context.Context) error {
	return e.driver.Close(ctx)
}

// Graph documents are materialized rather than stored as blobs: one (:Graph)
// anchor per name, (:Graph)-[:CONTAINS]->(:Node) for nodes with pins held as
// parallel property arrays, (:Node)-[:BINDS]->(:Node) from consumer to
// producer, and (:Graph)-[:GROUPS]->(:Subgraph) for groupings. Save replaces
// the whole document; Load reassembles it and validates the result.
const (
	cypherWipeGraph = `
MATCH (g:Graph {name: $name})
OPTIONAL MATCH (g)-[:CONTAINS|GROUPS]->(c)
DETACH DELETE g, c`

	cypherCreateGraph = `
CREATE (:Graph {name: $name, saved_at: $saved_at, node_count: $node_count})`

	cypherCreateNodes = `
MATCH (g:Graph {name: $name})
UNWIND $nodes AS node
CREATE (g)-[:CONTAINS]->(n:Node)
SET n = node`

	cypherCreateBindings = `
UNWIND $bindings AS b
MATCH (g:Graph {name: $name})-[:CONTAINS]->(consumer:Node {id: b.consumer_id})
MATCH (g)-[:CONTAINS]->(producer:Node {id: b.producer_id})
CREATE (consumer)-[:BINDS {input: b.input, output_index: b.output_index, behavior: b.behavior}]->(producer)`

	cypherCreateSubgraphs = `
MATCH (g:Graph {name: $name})
UNWIND $subgraphs AS sg
CREATE (g)-[:GROUPS]->(s:Subgraph)
SET s = sg`

	cypherGraphExists = `
MATCH (g:Graph {name: $name})
RETURN g.name AS name`

	cypherLoadNodes = `
MATCH (:Graph {name: $name})-[:CONTAINS]->(n:Node)
RETURN n
ORDER BY n.name`

	cypherLoadBindings = `
MATCH (:Graph {name: $name})-[:CONTAINS]->(consumer:Node)-[b:BINDS]->(producer:Node)
RETURN consumer.id AS consumer_id, b.input AS input, b.output_index AS output_index, b.behavior AS behavior, producer.id AS producer_id`

	cypherLoadSubgraphs = `
MATCH (:Graph {name: $name})-[:GROUPS]->(s:Subgraph)
RETURN s
ORDER BY s.name`

	cypherListGraphs = `
MATCH (g:Graph)
RETURN g.name AS name, g.saved_at AS saved_at, g.node_count AS node_count
ORDER BY name`
)

// Neo4j is an Archive backed by a Neo4j database.
type Neo4j struct {
	runner Runner
}

// NewNeo4j creates an archive on top of an existing runner.
func NewNeo4j(runner Runner) *Neo4j {
	return &Neo4j{runner: runner}
}

// Save validates the graph and replaces the archived document under name.
func (s *Neo4j) Save(ctx context.Context, name string, g *graph.Graph) error {
	logger := ctxlog.FromContext(ctx)

	if name == "" {
		return fmt.Errorf("archive: graph name is empty")
	}
	if err := g.Validate(); err != nil {
		return err
	}

	if _, err := s.runner.Run(ctx, cypherWipeGraph, map[string]any{"name": name}); err != nil {
		return fmt.Errorf("clearing previous revision of '%s': %w", name, err)
	}
	_, err := s.runner.Run(ctx, cypherCreateGraph, map[string]any{
		"name":       name,
		"saved_at":   time.Now().UTC().Format(time.RFC3339Nano),
		"node_count": len(g.Nodes),
	})
	if err != nil {
		return fmt.Errorf("archiving graph '%s': %w", name, err)
	}

	if len(g.Nodes) > 0 {
		nodes := make([]map[string]any, 0, len(g.Nodes))
		for _, n := range g.Nodes {
			nodes = append(nodes, nodeProps(n))
		}
		if _, err := s.runner.Run(ctx, cypherCreateNodes, map[string]any{"name": name, "nodes": nodes}); err != nil {
			return fmt.Errorf("archiving nodes of '%s': %w", name, err)
		}
	}

	bindings := bindingRows(g)
	if len(bindings) > 0 {
		if _, err := s.runner.Run(ctx, cypherCreateBindings, map[string]any{"name": name, "bindings": bindings}); err != nil {
			return fmt.Errorf("archiving bindings of '%s': %w", name, err)
		}
	}

	if len(g.Subgraphs) > 0 {
		subgraphs := make([]map[string]any, 0, len(g.Subgraphs))
		for _, sg := range g.Subgraphs {
			subgraphs = append(subgraphs, subgraphProps(sg))
		}
		if _, err := s.runner.Run(ctx, cypherCreateSubgraphs, map[string]any{"name": name, "subgraphs": subgraphs}); err != nil {
			return fmt.Errorf("archiving subgraphs of '%s': %w", name, err)
		}
	}

	logger.Debug("Graph archived.", "name", name, "nodes", len(g.Nodes), "bindings", len(bindings))
	return nil
}

// Load reassembles the graph archived under name and validates it.
func (s *Neo4j) Load(ctx context.Context, name string) (*graph.Graph, error) {
	res, err := s.runner.Run(ctx, cypherGraphExists, map[string]any{"name": name})
	if err != nil {
		return nil, fmt.Errorf("looking up graph '%s': %w", name, err)
	}
	if res == nil || len(res.Records) == 0 {
		return nil, fmt.Errorf("archive: graph '%s': %w", name, ErrNotFound)
	}

	g := &graph.Graph{}
	byID := make(map[uuid.UUID]*graph.Node)

	res, err = s.runner.Run(ctx, cypherLoadNodes, map[string]any{"name": name})
	if err != nil {
		return nil, fmt.Errorf("loading nodes of '%s': %w", name, err)
	}
	for _, rec := range records(res) {
		props, err := recordNodeProps(rec, "n")
		if err != nil {
			return nil, fmt.Errorf("graph '%s': %w", name, err)
		}
		n, err := nodeFromProps(props)
		if err != nil {
			return nil, fmt.Errorf("graph '%s': %w", name, err)
		}
		g.Nodes = append(g.Nodes, n)
		byID[n.ID] = n
	}

	res, err = s.runner.Run(ctx, cypherLoadBindings, map[string]any{"name": name})
	if err != nil {
		return nil, fmt.Errorf("loading bindings of '%s': %w", name, err)
	}
	for _, rec := range records(res) {
		if err := applyBindingRecord(rec, byID); err != nil {
			return nil, fmt.Errorf("graph '%s': %w", name, err)
		}
	}

	res, err = s.runner.Run(ctx, cypherLoadSubgraphs, map[string]any{"name": name})
	if err != nil {
		return nil, fmt.Errorf("loading subgraphs of '%s': %w", name, err)
	}
	for _, rec := range records(res) {
		props, err := recordNodeProps(rec, "s")
		if err != nil {
			return nil, fmt.Errorf("graph '%s': %w", name, err)
		}
		sg, err := subgraphFromProps(props)
		if err != nil {
			return nil, fmt.Errorf("graph '%s': %w", name, err)
		}
		g.Subgraphs = append(g.Subgraphs, sg)
	}

	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("archived graph '%s' failed validation: %w", name, err)
	}
	return g, nil
}

// List returns the archived entries sorted by name.
func (s *Neo4j) List(ctx context.Context) ([]Entry, error) {
	res, err := s.runner.Run(ctx, cypherListGraphs, map[string]any{})
	if err != nil {
		return nil, fmt.Errorf("listing archived graphs: %w", err)
	}

	var out []Entry
	for _, rec := range records(res) {
		name, err := recordString(rec, "name")
		if err != nil {
			return nil, err
		}
		savedAtRaw, err := recordString(rec, "saved_at")
		if err != nil {
			return nil, err
		}
		savedAt, err := time.Parse(time.RFC3339Nano, savedAtRaw)
		if err != nil {
			return nil, fmt.Errorf("archived graph '%s': saved_at is not a timestamp: %w", name, err)
		}
		nodes, err := recordInt(rec, "node_count")
		if err != nil {
			return nil, err
		}
		out = append(out, Entry{Name: name, Nodes: int(nodes), SavedAt: savedAt})
	}
	return out, nil
}

// Delete removes the graph archived under name.
func (s *Neo4j) Delete(ctx context.Context, name string) error {
	res, err := s.runner.Run(ctx, cypherGraphExists, map[string]any{"name": name})
	if err != nil {
		return fmt.Errorf("looking up graph '%s': %w", name, err)
	}
	if res == nil || len(res.Records) == 0 {
		return fmt.Errorf("archive: graph '%s': %w", name, ErrNotFound)
	}
	if _, err := s.runner.Run(ctx, cypherWipeGraph, map[string]any{"name": name}); err != nil {
		return fmt.Errorf("deleting graph '%s': %w", name, err)
	}
	return nil
}

// Close releases the runner if it owns a connection.
func (s *Neo4j) Close(ctx context.Context) error {
	if c, ok := s.runner.(interface{ Close(context.Context) error }); ok {
		return c.Close(ctx)
	}
	return nil
}

func records(res *neo4j.EagerResult) []*neo4j.Record {
	if res == nil {
		return nil
	}
	return res.Records
}

func nodeProps(n *graph.Node) map[string]any {
	inputNames := make([]string, len(n.Inputs))
	inputTypes := make([]string, len(n.Inputs))
	inputRequired := make([]bool, len(n.Inputs))
	for i, in := range n.Inputs {
		inputNames[i] = in.Name
		inputTypes[i] = in.Type.String()
		inputRequired[i] = in.Required
	}
	outputNames := make([]string, len(n.Outputs))
	outputTypes := make([]string, len(n.Outputs))
	for i, out := range n.Outputs {
		outputNames[i] = out.Name
		outputTypes[i] = out.Type.String()
	}

	props := map[string]any{
		"id":             n.ID.String(),
		"function_id":    n.FunctionID.String(),
		"name":           n.Name,
		"behavior":       n.Behavior.String(),
		"is_output":      n.IsOutput,
		"subgraph_id":    "",
		"input_names":    inputNames,
		"input_types":    inputTypes,
		"input_required": inputRequired,
		"output_names":   outputNames,
		"output_types":   outputTypes,
	}
	if n.SubgraphID != nil {
		props["subgraph_id"] = n.SubgraphID.String()
	}
	return props
}

func nodeFromProps(props map[string]any) (*graph.Node, error) {
	name, err := propString(props, "name")
	if err != nil {
		return nil, fmt.Errorf("archived node: %w", err)
	}
	fail := func(err error) (*graph.Node, error) {
		return nil, fmt.Errorf("archived node '%s': %w", name, err)
	}

	n := &graph.Node{Name: name}
	if n.ID, err = propUUID(props, "id"); err != nil {
		return fail(err)
	}
	if n.FunctionID, err = propUUID(props, "function_id"); err != nil {
		return fail(err)
	}
	behaviorRaw, err := propString(props, "behavior")
	if err != nil {
		return fail(err)
	}
	if n.Behavior, err = graph.ParseBehavior(behaviorRaw); err != nil {
		return fail(err)
	}
	if n.IsOutput, err = propBool(props, "is_output"); err != nil {
		return fail(err)
	}
	if sgRaw, err := propString(props, "subgraph_id"); err != nil {
		return fail(err)
	} else if sgRaw != "" {
		id, err := uuid.Parse(sgRaw)
		if err != nil {
			return fail(fmt.Errorf("subgraph_id is not a UUID: %w", err))
		}
		n.SubgraphID = &id
	}

	inputNames, err := propStrings(props, "input_names")
	if err != nil {
		return fail(err)
	}
	inputTypes, err := propStrings(props, "input_types")
	if err != nil {
		return fail(err)
	}
	inputRequired, err := propBools(props, "input_required")
	if err != nil {
		return fail(err)
	}
	if len(inputTypes) != len(inputNames) || len(inputRequired) != len(inputNames) {
		return fail(fmt.Errorf("input property lists disagree in length"))
	}
	for i := range inputNames {
		typ, err := dtype.Parse(inputTypes[i])
		if err != nil {
			return fail(err)
		}
		n.Inputs = append(n.Inputs, graph.Input{Name: inputNames[i], Type: typ, Required: inputRequired[i]})
	}

	outputNames, err := propStrings(props, "output_names")
	if err != nil {
		return fail(err)
	}
	outputTypes, err := propStrings(props, "output_types")
	if err != nil {
		return fail(err)
	}
	if len(outputTypes) != len(outputNames) {
		return fail(fmt.Errorf("output property lists disagree in length"))
	}
	for i := range outputNames {
		typ, err := dtype.Parse(outputTypes[i])
		if err != nil {
			return fail(err)
		}
		n.Outputs = append(n.Outputs, graph.Output{Name: outputNames[i], Type: typ})
	}

	return n, nil
}

func bindingRows(g *graph.Graph) []map[string]any {
	var rows []map[string]any
	for _, n := range g.Nodes {
		for _, in := range n.Inputs {
			if in.Binding == nil {
				continue
			}
			rows = append(rows, map[string]any{
				"consumer_id":  n.ID.String(),
				"input":        in.Name,
				"output_index": in.Binding.OutputIndex,
				"behavior":     in.Binding.Behavior.String(),
				"producer_id":  in.Binding.OutputNodeID.String(),
			})
		}
	}
	return rows
}

func applyBindingRecord(rec *neo4j.Record, byID map[uuid.UUID]*graph.Node) error {
	consumerRaw, err := recordString(rec, "consumer_id")
	if err != nil {
		return err
	}
	consumerID, err := uuid.Parse(consumerRaw)
	if err != nil {
		return fmt.Errorf("archived binding: consumer_id is not a UUID: %w", err)
	}
	consumer, ok := byID[consumerID]
	if !ok {
		return fmt.Errorf("archived binding references unknown consumer %s", consumerID)
	}

	inputName, err := recordString(rec, "input")
	if err != nil {
		return err
	}
	in, ok := consumer.Input(inputName)
	if !ok {
		return fmt.Errorf("archived binding targets missing input '%s' of node '%s'", inputName, consumer.Name)
	}

	producerRaw, err := recordString(rec, "producer_id")
	if err != nil {
		return err
	}
	producerID, err := uuid.Parse(producerRaw)
	if err != nil {
		return fmt.Errorf("archived binding: producer_id is not a UUID: %w", err)
	}
	outputIndex, err := recordInt(rec, "output_index")
	if err != nil {
		return err
	}
	behaviorRaw, err := recordString(rec, "behavior")
	if err != nil {
		return err
	}
	behavior, err := graph.ParseEdgeBehavior(behaviorRaw)
	if err != nil {
		return fmt.Errorf("archived binding of node '%s': %w", consumer.Name, err)
	}

	in.Binding = &graph.Binding{OutputNodeID: producerID, OutputIndex: int(outputIndex), Behavior: behavior}
	return nil
}

func subgraphProps(sg *graph.Subgraph) map[string]any {
	props := map[string]any{"id": sg.ID.String(), "name": sg.Name}
	addPins := func(prefix string, pins []graph.SubgraphPin) {
		names := make([]string, len(pins))
		types := make([]string, len(pins))
		nodeIDs := make([]string, len(pins))
		indexes := make([]int64, len(pins))
		for i, pin := range pins {
			names[i] = pin.Name
			types[i] = pin.Type.String()
			nodeIDs[i] = pin.NodeID.String()
			indexes[i] = int64(pin.Index)
		}
		props[prefix+"_names"] = names
		props[prefix+"_types"] = types
		props[prefix+"_node_ids"] = nodeIDs
		props[prefix+"_indexes"] = indexes
	}
	addPins("input", sg.Inputs)
	addPins("output", sg.Outputs)
	return props
}

func subgraphFromProps(props map[string]any) (*graph.Subgraph, error) {
	name, err := propString(props, "name")
	if err != nil {
		return nil, fmt.Errorf("archived subgraph: %w", err)
	}
	fail := func(err error) (*graph.Subgraph, error) {
		return nil, fmt.Errorf("archived subgraph '%s': %w", name, err)
	}

	sg := &graph.Subgraph{Name: name}
	if sg.ID, err = propUUID(props, "id"); err != nil {
		return fail(err)
	}
	if sg.Inputs, err = pinsFromProps(props, "input"); err != nil {
		return fail(err)
	}
	if sg.Outputs, err = pinsFromProps(props, "output"); err != nil {
		return fail(err)
	}
	return sg, nil
}

func pinsFromProps(props map[string]any, prefix string) ([]graph.SubgraphPin, error) {
	names, err := propStrings(props, prefix+"_names")
	if err != nil {
		return nil, err
	}
	types, err := propStrings(props, prefix+"_types")
	if err != nil {
		return nil, err
	}
	nodeIDs, err := propStrings(props, prefix+"_node_ids")
	if err != nil {
		return nil, err
	}
	indexes, err := propInts(props, prefix+"_indexes")
	if err != nil {
		return nil, err
	}
	if len(types) != len(names) || len(nodeIDs) != len(names) || len(indexes) != len(names) {
		return nil, fmt.Errorf("%s pin property lists disagree in length", prefix)
	}

	var pins []graph.SubgraphPin
	for i := range names {
		typ, err := dtype.Parse(types[i])
		if err != nil {
			return nil, err
		}
		nodeID, err := uuid.Parse(nodeIDs[i])
		if err != nil {
			return nil, fmt.Errorf("pin '%s': node_id is not a UUID: %w", names[i], err)
		}
		pins = append(pins, graph.SubgraphPin{Name: names[i], Type: typ, NodeID: nodeID, Index: int(indexes[i])})
	}
	return pins, nil
}

func recordNodeProps(rec *neo4j.Record, alias string) (map[string]any, error) {
	raw, ok := rec.Get(alias)
	if !ok {
		return nil, fmt.Errorf("query result has no '%s' column", alias)
	}
	node, ok := raw.(neo4j.Node)
	if !ok {
		return nil, fmt.Errorf("query result column '%s' is %T, not a node", alias, raw)
	}
	return node.Props, nil
}

func recordString(rec *neo4j.Record, key string) (string, error) {
	raw, ok := rec.Get(key)
	if !ok {
		return "", fmt.Errorf("query result has no '%s' column", key)
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("query result column '%s' is %T, not a string", key, raw)
	}
	return s, nil
}

func recordInt(rec *neo4j.Record, key string) (int64, error) {
	raw, ok := rec.Get(key)
	if !ok {
		return 0, fmt.Errorf("query result has no '%s' column", key)
	}
	switch v := raw.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	default:
		return 0, fmt.Errorf("query result column '%s' is %T, not an integer", key, raw)
	}
}

func propString(props map[string]any, key string) (string, error) {
	raw, ok := props[key]
	if !ok {
		return "", fmt.Errorf("property '%s' is missing", key)
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("property '%s' is %T, not a string", key, raw)
	}
	return s, nil
}

func propBool(props map[string]any, key string) (bool, error) {
	raw, ok := props[key]
	if !ok {
		return false, fmt.Errorf("property '%s' is missing", key)
	}
	b, ok := raw.(bool)
	if !ok {
		return false, fmt.Errorf("property '%s' is %T, not a bool", key, raw)
	}
	return b, nil
}

func propUUID(props map[string]any, key string) (uuid.UUID, error) {
	s, err := propString(props, key)
	if err != nil {
		return uuid.Nil, err
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("property '%s' is not a UUID: %w", key, err)
	}
	return id, nil
}

// The driver hands list properties back as []any regardless of what was
// stored; stubs in tests may hand back typed slices directly.
func propStrings(props map[string]any, key string) ([]string, error) {
	raw, ok := props[key]
	if !ok {
		return nil, fmt.Errorf("property '%s' is missing", key)
	}
	switch v := raw.(type) {
	case []string:
		return v, nil
	case []any:
		out := make([]string, len(v))
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("property '%s'[%d] is %T, not a string", key, i, item)
			}
			out[i] = s
		}
		return out, nil
	default:
		return nil, fmt.Errorf("property '%s' is %T, not a list", key, raw)
	}
}

func propBools(props map[string]any, key string) ([]bool, error) {
	raw, ok := props[key]
	if !ok {
		return nil, fmt.Errorf("property '%s' is missing", key)
	}
	switch v := raw.(type) {
	case []bool:
		return v, nil
	case []any:
		out := make([]bool, len(v))
		for i, item := range v {
			b, ok := item.(bool)
			if !ok {
				return nil, fmt.Errorf("property '%s'[%d] is %T, not a bool", key, i, item)
			}
			out[i] = b
		}
		return out, nil
	default:
		return nil, fmt.Errorf("property '%s' is %T, not a list", key, raw)
	}
}

func propInts(props map[string]any, key string) ([]int64, error) {
	raw, ok := props[key]
	if !ok {
		return nil, fmt.Errorf("property '%s' is missing", key)
	}
	switch v := raw.(type) {
	case []int64:
		return v, nil
	case []any:
		out := make([]int64, len(v))
		for i, item := range v {
			switch n := item.(type) {
			case int64:
				out[i] = n
			case int:
				out[i] = int64(n)
			default:
				return nil, fmt.Errorf("property '%s'[%d] is %T, not an integer", key, i, item)
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("property '%s' is %T, not a list", key, raw)
	}
}
