package semantic

import (
	"context"
	"errors"
	"testing"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
)

// --- Mocks ---

type mockPoints struct {
	upsertReq  *pb.UpsertPoints
	upsertResp *pb.PointsOperationResponse
	upsertErr  error
	searchResp *pb.SearchResponse
	searchErr  error
}

func (m *mockPoints) Upsert(_ context.Context, req *pb.UpsertPoints, _ ...grpc.CallOption) (*pb.PointsOperationResponse, error) {
	m.upsertReq = req
	return m.upsertResp, m.upsertErr
}
func (m *mockPoints) Search(_ context.Context, _ *pb.SearchPoints, _ ...grpc.CallOption) (*pb.SearchResponse, error) {
	return m.searchResp, m.searchErr
}

type mockCollections struct {
	listResp   *pb.ListCollectionsResponse
	listErr    error
	createReq  *pb.CreateCollection
	createResp *pb.CollectionOperationResponse
	createErr  error
	deleteResp *pb.CollectionOperationResponse
	deleteErr  error
}

func (m *mockCollections) List(_ context.Context, _ *pb.ListCollectionsRequest, _ ...grpc.CallOption) (*pb.ListCollectionsResponse, error) {
	return m.listResp, m.listErr
}
func (m *mockCollections) Create(_ context.Context, req *pb.CreateCollection, _ ...grpc.CallOption) (*pb.CollectionOperationResponse, error) {
	m.createReq = req
	return m.createResp, m.createErr
}
func (m *mockCollections) Delete(_ context.Context, _ *pb.DeleteCollection, _ ...grpc.CallOption) (*pb.CollectionOperationResponse, error) {
	return m.deleteResp, m.deleteErr
}

// --- Tests ---

func TestNewWithClients_CloseWithoutConn(t *testing.T) {
	vs := NewWithClients(&mockPoints{}, &mockCollections{}, "test")
	if err := vs.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestCollectionName(t *testing.T) {
	got := CollectionName("eventbrief", "0b0e-11aa")
	if got != "eventbrief_0b0e11aa" {
		t.Fatalf("unexpected name %q", got)
	}
}

func TestEnsureCollection_AlreadyExists(t *testing.T) {
	cols := &mockCollections{
		listResp: &pb.ListCollectionsResponse{
			Collections: []*pb.CollectionDescription{{Name: "test"}},
		},
	}
	vs := NewWithClients(&mockPoints{}, cols, "test")
	if err := vs.EnsureCollection(context.Background(), 4); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cols.createReq != nil {
		t.Fatal("should not create an existing collection")
	}
}

func TestEnsureCollection_Creates(t *testing.T) {
	cols := &mockCollections{
		listResp:   &pb.ListCollectionsResponse{Collections: []*pb.CollectionDescription{{Name: "other"}}},
		createResp: &pb.CollectionOperationResponse{Result: true},
	}
	vs := NewWithClients(&mockPoints{}, cols, "test")
	if err := vs.EnsureCollection(context.Background(), 384); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cols.createReq == nil || cols.createReq.GetVectorsConfig().GetParams().GetSize() != 384 {
		t.Fatalf("unexpected create request: %v", cols.createReq)
	}
}

func TestEnsureCollection_Errors(t *testing.T) {
	listFail := NewWithClients(&mockPoints{}, &mockCollections{listErr: errors.New("rpc fail")}, "test")
	if err := listFail.EnsureCollection(context.Background(), 4); err == nil {
		t.Fatal("expected list error")
	}

	createFail := NewWithClients(&mockPoints{}, &mockCollections{
		listResp:  &pb.ListCollectionsResponse{},
		createErr: errors.New("create fail"),
	}, "test")
	if err := createFail.EnsureCollection(context.Background(), 4); err == nil {
		t.Fatal("expected create error")
	}
}

func TestDeleteCollection(t *testing.T) {
	ok := NewWithClients(&mockPoints{}, &mockCollections{deleteResp: &pb.CollectionOperationResponse{Result: true}}, "test")
	if err := ok.DeleteCollection(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fail := NewWithClients(&mockPoints{}, &mockCollections{deleteErr: errors.New("fail")}, "test")
	if err := fail.DeleteCollection(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestUpsert_Empty(t *testing.T) {
	pts := &mockPoints{}
	vs := NewWithClients(pts, &mockCollections{}, "test")
	if err := vs.Upsert(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pts.upsertReq != nil {
		t.Fatal("empty upsert should not call qdrant")
	}
}

func TestUpsert_PayloadKinds(t *testing.T) {
	pts := &mockPoints{upsertResp: &pb.PointsOperationResponse{}}
	vs := NewWithClients(pts, &mockCollections{}, "test")

	records := []VectorRecord{{
		ID:        "6f1c3c1e-0000-5000-8000-000000000001",
		Embedding: []float32{1, 0, 0, 0},
		Payload: map[string]any{
			"content":     "Budget is 40k",
			"chunk_index": 3,
			"size":        int64(99),
			"score":       0.5,
			"json":        true,
			"other":       []int{1, 2},
		},
	}}
	if err := vs.Upsert(context.Background(), records); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p := pts.upsertReq.GetPoints()[0].GetPayload()
	if p["content"].GetStringValue() != "Budget is 40k" || p["chunk_index"].GetIntegerValue() != 3 {
		t.Fatalf("unexpected payload: %v", p)
	}
	if p["other"].GetStringValue() != "[1 2]" {
		t.Fatalf("default payload kind should stringify, got %v", p["other"])
	}
}

func TestUpsert_Error(t *testing.T) {
	pts := &mockPoints{upsertErr: errors.New("fail")}
	vs := NewWithClients(pts, &mockCollections{}, "test")
	if err := vs.Upsert(context.Background(), []VectorRecord{{ID: "id1", Embedding: []float32{1, 0}}}); err == nil {
		t.Fatal("expected error")
	}
}

func TestSearch_Success(t *testing.T) {
	pts := &mockPoints{
		searchResp: &pb.SearchResponse{
			Result: []*pb.ScoredPoint{{
				Id:    &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: "p1"}},
				Score: 0.95,
				Payload: map[string]*pb.Value{
					"content":     {Kind: &pb.Value_StringValue{StringValue: "Producer: Ann Lee"}},
					"doc_id":      {Kind: &pb.Value_StringValue{StringValue: "kickoff.pdf"}},
					"source":      {Kind: &pb.Value_StringValue{StringValue: "kickoff.pdf"}},
					"chunk_index": {Kind: &pb.Value_IntegerValue{IntegerValue: 2}},
				},
			}},
		},
	}
	vs := NewWithClients(pts, &mockCollections{}, "test")
	results, err := vs.Search(context.Background(), []float32{1, 0}, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1, got %d", len(results))
	}
	r := results[0]
	if r.Content != "Producer: Ann Lee" || r.DocID != "kickoff.pdf" || r.Source != "kickoff.pdf" {
		t.Errorf("unexpected result: %+v", r)
	}
	if r.Meta["chunk_index"] != "2" {
		t.Errorf("wrong meta: %v", r.Meta)
	}
	if r.ID != "p1" || r.Score != 0.95 {
		t.Error("wrong id/score")
	}
}

func TestSearch_Error(t *testing.T) {
	vs := NewWithClients(&mockPoints{searchErr: errors.New("fail")}, &mockCollections{}, "test")
	if _, err := vs.Search(context.Background(), []float32{1}, 5); err == nil {
		t.Fatal("expected error")
	}
}
