package marketplace

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/xyths/ticket-market/chain"
	"github.com/xyths/ticket-market/imageurl"
)

var (
	walletA = common.HexToAddress("0xAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAa")
	walletB = common.HexToAddress("0xbBbBBBBbbBBBbbbBbbBbbbbBBbBbbbbBbBbbBBbB")
	walletC = common.HexToAddress("0xCcCCccccCCCCcCCCCCCcCcCccCcCCCcCcccccccC")

	lowerA = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	lowerB = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	lowerC = "0xcccccccccccccccccccccccccccccccccccccccc"

	errTransport = errors.New("dial tcp 127.0.0.1:8545: connection refused")

	testNow = time.Unix(1760000000, 0)
	past    = testNow.Unix() - 3600
	future  = testNow.Unix() + 3600
)

type fakeGateway struct {
	nextSaleID uint64
	nextErr    error
	sales      map[uint64]*chain.Sale
	saleErrs   map[uint64]error

	supply    uint64
	supplyErr error
	tickets   map[uint64]*chain.Ticket
	owners    map[uint64]common.Address
	tokenErrs map[uint64]error
	approved  map[uint64]common.Address

	mu    sync.Mutex
	calls []string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		sales:     make(map[uint64]*chain.Sale),
		saleErrs:  make(map[uint64]error),
		tickets:   make(map[uint64]*chain.Ticket),
		owners:    make(map[uint64]common.Address),
		tokenErrs: make(map[uint64]error),
		approved:  make(map[uint64]common.Address),
	}
}

func (f *fakeGateway) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeGateway) count(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (f *fakeGateway) NextSaleID(context.Context) (uint64, error) {
	f.record("nextSaleId")
	return f.nextSaleID, f.nextErr
}

func (f *fakeGateway) GetSale(_ context.Context, id uint64) (*chain.Sale, error) {
	f.record("getSale")
	if err := f.saleErrs[id]; err != nil {
		return nil, err
	}
	s, ok := f.sales[id]
	if !ok {
		return nil, chain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeGateway) TotalSupply(context.Context) (uint64, error) {
	f.record("totalSupply")
	return f.supply, f.supplyErr
}

func (f *fakeGateway) GetNFTData(_ context.Context, id uint64) (*chain.Ticket, error) {
	f.record("getNFTData")
	if err := f.tokenErrs[id]; err != nil {
		return nil, err
	}
	t, ok := f.tickets[id]
	if !ok {
		return nil, chain.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (f *fakeGateway) OwnerOf(_ context.Context, id uint64) (common.Address, error) {
	f.record("ownerOf")
	o, ok := f.owners[id]
	if !ok {
		return common.Address{}, chain.ErrNotFound
	}
	return o, nil
}

func (f *fakeGateway) GetApproved(_ context.Context, id uint64) (common.Address, error) {
	f.record("getApproved")
	if _, ok := f.owners[id]; !ok {
		return common.Address{}, chain.ErrNotFound
	}
	return f.approved[id], nil
}

// addSale registers a sale for tokenID and a ticket minted by the seller.
func (f *fakeGateway) addSale(id uint64, sale chain.Sale) {
	f.sales[id] = &sale
	if id >= f.nextSaleID {
		f.nextSaleID = id + 1
	}
	if _, ok := f.tickets[sale.TokenID]; !ok {
		f.addTicket(sale.TokenID, sale.Seller, common.HexToAddress("0x547C12fA1AFFf575a881c765229B0D478C4c499E"))
	}
}

func (f *fakeGateway) addTicket(id uint64, minter, owner common.Address) {
	f.tickets[id] = &chain.Ticket{
		TokenID:       id,
		Picture:       "ipfs://QmTicket",
		Location:      "Main Arena",
		Datetime:      1760003600,
		OriginalOwner: minter,
		CurrentOwner:  owner,
		EventType:     1,
		HasEventType:  true,
	}
	f.owners[id] = owner
	if id > f.supply {
		f.supply = id
	}
}

func usd(n int64) *big.Int { return big.NewInt(n) }

func activeSale(tokenID uint64, seller common.Address, endTime int64) chain.Sale {
	return chain.Sale{
		Seller:         seller,
		TokenID:        tokenID,
		ListPriceUSD:   usd(5000000000),
		BuyNowPriceUSD: usd(10000000000),
		CurrentBidUSD:  usd(0),
		CurrentBidder:  chain.ZeroAddress,
		EndTime:        endTime,
		Active:         true,
	}
}

func newTestScanner(t *testing.T, gw chain.Gateway) *Scanner {
	t.Helper()
	s := NewScanner(gw, imageurl.New(imageurl.Config{}), zap.NewNop().Sugar())
	s.now = func() time.Time { return testNow }
	return s
}

func saleIDs(entries []SaleEntry) []uint64 {
	ids := make([]uint64, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.SaleID)
	}
	return ids
}
