package trader

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"callout/internal/gateway/broker"
)

// fakeBroker 是内存券商,记录每次提交与撤单供断言用。
type fakeBroker struct {
	mu sync.Mutex

	account    broker.Account
	accountErr error

	positions    []broker.Position
	positionsErr error

	orderStatus string // status served by GetOrder
	submitErr   error
	getErr      error
	cancelErr   error

	submits []broker.OrderRequest
	cancels []string
	nextID  int
}

var _ broker.Broker = (*fakeBroker)(nil)

func (f *fakeBroker) GetAccount(ctx context.Context) (broker.Account, error) {
	if f.accountErr != nil {
		return broker.Account{}, f.accountErr
	}
	return f.account, nil
}

func (f *fakeBroker) ListPositions(ctx context.Context) ([]broker.Position, error) {
	if f.positionsErr != nil {
		return nil, f.positionsErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]broker.Position, len(f.positions))
	copy(out, f.positions)
	return out, nil
}

func (f *fakeBroker) FindPosition(ctx context.Context, ticker string) (*broker.Position, error) {
	if f.positionsErr != nil {
		return nil, f.positionsErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	ticker = strings.ToUpper(ticker)
	for i := range f.positions {
		p := f.positions[i]
		if p.AssetClass == broker.AssetOption && strings.HasPrefix(strings.ToUpper(p.Symbol), ticker) {
			return &p, nil
		}
		if p.AssetClass == broker.AssetEquity && strings.EqualFold(p.Symbol, ticker) {
			return &p, nil
		}
	}
	return nil, broker.ErrPositionNotFound
}

func (f *fakeBroker) SubmitOrder(ctx context.Context, req broker.OrderRequest) (*broker.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	f.nextID++
	f.submits = append(f.submits, req)
	return &broker.Order{
		ID:            fmt.Sprintf("order-%d", f.nextID),
		ClientOrderID: req.ClientOrderID,
		Symbol:        req.Symbol,
		Quantity:      req.Quantity,
		Side:          req.Side,
		Type:          req.Type,
		LimitPrice:    req.LimitPrice,
		Status:        "accepted",
	}, nil
}

func (f *fakeBroker) GetOrder(ctx context.Context, id string) (*broker.Order, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	status := f.orderStatus
	if status == "" {
		status = "new"
	}
	return &broker.Order{ID: id, Status: status}, nil
}

func (f *fakeBroker) CancelOrder(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancelErr != nil {
		return f.cancelErr
	}
	f.cancels = append(f.cancels, id)
	return nil
}

func (f *fakeBroker) submitted() []broker.OrderRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]broker.OrderRequest, len(f.submits))
	copy(out, f.submits)
	return out
}

func (f *fakeBroker) cancelled() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.cancels))
	copy(out, f.cancels)
	return out
}
