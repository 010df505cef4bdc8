package rpc

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/BenjDW/maitre-slither/core"
	"github.com/BenjDW/maitre-slither/native/room"
	"github.com/BenjDW/maitre-slither/native/token"
	"github.com/BenjDW/maitre-slither/storage"
)

const (
	testChainID  = uint64(727001)
	testBaseTime = int64(1_700_000_000)
	testStake    = int64(10_000_000)
	testAlloc    = int64(100_000_000)
)

type testEnv struct {
	server   *Server
	node     *core.Node
	token    string
	operator [20]byte
	owner    [20]byte
	treasury [20]byte
	playerA  [20]byte
	playerB  [20]byte
	now      int64
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	authToken := "test-token"
	if err := os.Setenv("MSL_RPC_TOKEN", authToken); err != nil {
		t.Fatalf("set env: %v", err)
	}
	t.Cleanup(func() {
		_ = os.Unsetenv("MSL_RPC_TOKEN")
	})
	key, err := ethcrypto.ToECDSA(bytes.Repeat([]byte{0x42}, 32))
	if err != nil {
		t.Fatalf("derive operator key: %v", err)
	}
	env := &testEnv{
		token:    authToken,
		operator: [20]byte(ethcrypto.PubkeyToAddress(key.PublicKey)),
		owner:    testAddr(0x01),
		treasury: testAddr(0x03),
		playerA:  testAddr(0x11),
		playerB:  testAddr(0x22),
		now:      testBaseTime,
	}
	node, err := core.NewNode(storage.NewMemDB(), core.NodeConfig{
		ChainID: testChainID,
		Genesis: core.Genesis{
			Owner:      env.owner,
			Operator:   env.operator,
			Treasury:   env.treasury,
			FeeRateBps: 200,
			Alloc: []core.GenesisAccount{
				{Account: env.playerA, Balance: big.NewInt(testAlloc)},
				{Account: env.playerB, Balance: big.NewInt(testAlloc)},
			},
		},
	})
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	node.SetNowFunc(func() int64 { return env.now })
	env.node = node
	env.server = NewServer(node)
	return env
}

func testAddr(fill byte) [20]byte {
	var addr [20]byte
	for i := range addr {
		addr[i] = fill
	}
	return addr
}

func (env *testEnv) newRequest() *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Authorization", "Bearer "+env.token)
	return req
}

// signResolve signs the settlement tuple with the operator key configured at
// genesis and returns the hex encoding handlers expect.
func (env *testEnv) signResolve(t *testing.T, params room.ResolveParams) string {
	t.Helper()
	key, err := ethcrypto.ToECDSA(bytes.Repeat([]byte{0x42}, 32))
	if err != nil {
		t.Fatalf("derive operator key: %v", err)
	}
	domain := room.SettlementDomain(testChainID, token.VaultAddress())
	digest, err := room.ResolveDigest(domain, params)
	if err != nil {
		t.Fatalf("resolve digest: %v", err)
	}
	sig, err := ethcrypto.Sign(digest[:], key)
	if err != nil {
		t.Fatalf("sign digest: %v", err)
	}
	return "0x" + hex.EncodeToString(sig)
}

func marshalParam(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal param: %v", err)
	}
	return raw
}

func decodeRPCResponse(t *testing.T, rec *httptest.ResponseRecorder) (json.RawMessage, *RPCError) {
	t.Helper()
	var resp struct {
		Result json.RawMessage `json:"result"`
		Error  *RPCError       `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp.Result, resp.Error
}

// createPool provisions a two-seat pool through the node so handler tests can
// focus on the call under test.
func (env *testEnv) createPool(t *testing.T) uint64 {
	t.Helper()
	id, err := env.node.PoolCreate(env.operator, big.NewInt(testStake), 2, testBaseTime+3600)
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	return id
}

func (env *testEnv) livePool(t *testing.T) uint64 {
	t.Helper()
	id := env.createPool(t)
	if err := env.node.PoolJoin(id, env.playerA); err != nil {
		t.Fatalf("join player A: %v", err)
	}
	if err := env.node.PoolJoin(id, env.playerB); err != nil {
		t.Fatalf("join player B: %v", err)
	}
	if err := env.node.PoolStart(id, env.operator); err != nil {
		t.Fatalf("start pool: %v", err)
	}
	return id
}

func (env *testEnv) createRoom(t *testing.T) uint64 {
	t.Helper()
	id, err := env.node.RoomCreate(env.operator, env.playerA, env.playerB, big.NewInt(testStake), testBaseTime+3600)
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	return id
}

func (env *testEnv) startedRoom(t *testing.T) uint64 {
	t.Helper()
	id := env.createRoom(t)
	if err := env.node.RoomJoin(id, env.playerA); err != nil {
		t.Fatalf("join player A: %v", err)
	}
	if err := env.node.RoomJoin(id, env.playerB); err != nil {
		t.Fatalf("join player B: %v", err)
	}
	if err := env.node.RoomStart(id); err != nil {
		t.Fatalf("start room: %v", err)
	}
	return id
}
