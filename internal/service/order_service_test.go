package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	apperrors "autoparts/internal/errors"
	"autoparts/internal/events"
	"autoparts/internal/model"
)

type orderFixture struct {
	orders    *MockOrderRepository
	products  *MockProductRepository
	cache     *MockProductCache
	metrics   *MockOrderMetrics
	publisher *MockPublisher
	service   OrderService
}

func newOrderFixture() *orderFixture {
	products := new(MockProductRepository)
	f := &orderFixture{
		orders:    &MockOrderRepository{products: products},
		products:  products,
		cache:     new(MockProductCache),
		metrics:   new(MockOrderMetrics),
		publisher: new(MockPublisher),
	}
	f.service = NewOrderService(f.orders, f.cache, f.metrics, f.publisher)
	return f
}

func validAddress() model.Address {
	return model.Address{Street: "Main St", Number: "10", City: "Springfield", State: "IL", ZipCode: "62701"}
}

func TestOrderService_CreateOrder_TotalMatchesSnapshots(t *testing.T) {
	f := newOrderFixture()
	locked := []model.Product{
		{ID: 1, Name: "A", Price: decimal.RequireFromString("10.00"), Stock: 10, Active: true},
		{ID: 2, Name: "B", Price: decimal.RequireFromString("5.00"), Stock: 10, Active: true},
	}

	f.orders.On("WithTransaction", mock.Anything).Return(nil)
	f.products.On("FindByIDsForUpdate", mock.Anything, []uint{1, 2}).Return(locked, nil)
	f.products.On("DecrementStock", mock.Anything, uint(1), 2).Return(true, nil)
	f.products.On("DecrementStock", mock.Anything, uint(2), 1).Return(true, nil)
	f.orders.On("Create", mock.Anything, mock.AnythingOfType("*model.Order")).Return(nil)
	f.cache.On("InvalidateProducts", mock.Anything, []uint{1, 2}).Return()
	f.metrics.On("OrderCreated", "25.00").Return()
	f.publisher.On("PublishOrderCreated", mock.Anything, mock.MatchedBy(func(evt events.OrderCreated) bool {
		return evt.OrderID == 100 && len(evt.Items) == 2 && evt.Total.Equal(decimal.RequireFromString("25"))
	})).Return(nil)

	order, err := f.service.CreateOrder(context.Background(), 7, CreateOrderInput{
		Items:           []OrderItemInput{{ProductID: 1, Quantity: 2}, {ProductID: 2, Quantity: 1}},
		ShippingAddress: validAddress(),
		PaymentMethod:   "credit_card",
	})
	require.NoError(t, err)

	assert.Equal(t, uint(7), order.UserID)
	assert.Equal(t, model.OrderStatusPending, order.Status)
	assert.Equal(t, model.PaymentStatusPending, order.PaymentStatus)
	assert.True(t, decimal.RequireFromString("25.00").Equal(order.Total))
	require.Len(t, order.Items, 2)
	assert.True(t, decimal.RequireFromString("10.00").Equal(order.Items[0].Price))
	assert.True(t, decimal.RequireFromString("5.00").Equal(order.Items[1].Price))
	assert.Equal(t, "A", order.Items[0].ProductName)

	sum := decimal.Zero
	for _, item := range order.Items {
		sum = sum.Add(item.Subtotal())
	}
	assert.True(t, sum.Equal(order.Total))

	require.NoError(t, f.service.Drain(context.Background()))
	f.orders.AssertExpectations(t)
	f.products.AssertExpectations(t)
	f.cache.AssertExpectations(t)
	f.metrics.AssertExpectations(t)
	f.publisher.AssertExpectations(t)
}

func TestOrderService_CreateOrder_Rejections(t *testing.T) {
	tests := []struct {
		name          string
		input         CreateOrderInput
		setupMock     func(*orderFixture)
		expectedError error
		reason        string
	}{
		{
			name:          "empty cart",
			input:         CreateOrderInput{ShippingAddress: validAddress(), PaymentMethod: "pix"},
			setupMock:     func(f *orderFixture) {},
			expectedError: apperrors.ErrValidation,
			reason:        "validation",
		},
		{
			name: "zero quantity",
			input: CreateOrderInput{
				Items:           []OrderItemInput{{ProductID: 1, Quantity: 0}},
				ShippingAddress: validAddress(), PaymentMethod: "pix",
			},
			setupMock:     func(f *orderFixture) {},
			expectedError: apperrors.ErrValidation,
			reason:        "validation",
		},
		{
			name: "missing zip code",
			input: CreateOrderInput{
				Items:           []OrderItemInput{{ProductID: 1, Quantity: 1}},
				ShippingAddress: model.Address{Street: "Main", City: "X", State: "Y"}, PaymentMethod: "pix",
			},
			setupMock:     func(f *orderFixture) {},
			expectedError: apperrors.ErrValidation,
			reason:        "validation",
		},
		{
			name: "missing product",
			input: CreateOrderInput{
				Items:           []OrderItemInput{{ProductID: 9, Quantity: 1}},
				ShippingAddress: validAddress(), PaymentMethod: "pix",
			},
			setupMock: func(f *orderFixture) {
				f.orders.On("WithTransaction", mock.Anything).Return(nil)
				f.products.On("FindByIDsForUpdate", mock.Anything, []uint{9}).Return([]model.Product{}, nil)
			},
			expectedError: apperrors.ErrProductUnavailable,
			reason:        "product_unavailable",
		},
		{
			name: "inactive product",
			input: CreateOrderInput{
				Items:           []OrderItemInput{{ProductID: 1, Quantity: 1}},
				ShippingAddress: validAddress(), PaymentMethod: "pix",
			},
			setupMock: func(f *orderFixture) {
				f.orders.On("WithTransaction", mock.Anything).Return(nil)
				f.products.On("FindByIDsForUpdate", mock.Anything, []uint{1}).Return([]model.Product{
					{ID: 1, Price: decimal.RequireFromString("1"), Stock: 5, Active: false},
				}, nil)
			},
			expectedError: apperrors.ErrProductUnavailable,
			reason:        "product_unavailable",
		},
		{
			name: "insufficient stock",
			input: CreateOrderInput{
				Items:           []OrderItemInput{{ProductID: 1, Quantity: 11}},
				ShippingAddress: validAddress(), PaymentMethod: "pix",
			},
			setupMock: func(f *orderFixture) {
				f.orders.On("WithTransaction", mock.Anything).Return(nil)
				f.products.On("FindByIDsForUpdate", mock.Anything, []uint{1}).Return([]model.Product{
					{ID: 1, Name: "A", Price: decimal.RequireFromString("1"), Stock: 10, Active: true},
				}, nil)
				f.products.On("DecrementStock", mock.Anything, uint(1), 11).Return(false, nil)
			},
			expectedError: apperrors.ErrInsufficientStock,
			reason:        "insufficient_stock",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newOrderFixture()
			tt.setupMock(f)
			f.metrics.On("OrderFailed", tt.reason).Return()

			order, err := f.service.CreateOrder(context.Background(), 1, tt.input)
			assert.ErrorIs(t, err, tt.expectedError)
			assert.Nil(t, order)

			require.NoError(t, f.service.Drain(context.Background()))
			f.orders.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
			f.publisher.AssertNotCalled(t, "PublishOrderCreated", mock.Anything, mock.Anything)
			f.metrics.AssertExpectations(t)
			f.products.AssertExpectations(t)
		})
	}
}

func TestOrderService_CreateOrder_PublishFailureIsNotReturned(t *testing.T) {
	f := newOrderFixture()
	f.orders.On("WithTransaction", mock.Anything).Return(nil)
	f.products.On("FindByIDsForUpdate", mock.Anything, []uint{1}).Return([]model.Product{
		{ID: 1, Name: "A", Price: decimal.RequireFromString("3.50"), Stock: 10, Active: true},
	}, nil)
	f.products.On("DecrementStock", mock.Anything, uint(1), 3).Return(true, nil)
	f.orders.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.cache.On("InvalidateProducts", mock.Anything, mock.Anything).Return()
	f.metrics.On("OrderCreated", "10.50").Return()
	f.publisher.On("PublishOrderCreated", mock.Anything, mock.Anything).Return(errors.New("broker down"))

	order, err := f.service.CreateOrder(context.Background(), 1, CreateOrderInput{
		Items:           []OrderItemInput{{ProductID: 1, Quantity: 3}},
		ShippingAddress: validAddress(),
		PaymentMethod:   "pix",
	})
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("10.50").Equal(order.Total))

	require.NoError(t, f.service.Drain(context.Background()))
	f.publisher.AssertExpectations(t)
}

// stubOneItemCheckout prepares a successful checkout of one 2.00 product.
func stubOneItemCheckout(f *orderFixture) CreateOrderInput {
	f.orders.On("WithTransaction", mock.Anything).Return(nil)
	f.products.On("FindByIDsForUpdate", mock.Anything, []uint{1}).Return([]model.Product{
		{ID: 1, Name: "A", Price: decimal.RequireFromString("2.00"), Stock: 10, Active: true},
	}, nil)
	f.products.On("DecrementStock", mock.Anything, uint(1), 1).Return(true, nil)
	f.orders.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.cache.On("InvalidateProducts", mock.Anything, mock.Anything).Return()
	f.metrics.On("OrderCreated", "2.00").Return()
	return CreateOrderInput{
		Items:           []OrderItemInput{{ProductID: 1, Quantity: 1}},
		ShippingAddress: validAddress(),
		PaymentMethod:   "pix",
	}
}

func TestOrderService_CreateOrder_DoesNotWaitForBroker(t *testing.T) {
	f := newOrderFixture()
	in := stubOneItemCheckout(f)

	release := make(chan time.Time)
	var (
		errAtPublish error
		hasDeadline  bool
	)
	f.publisher.On("PublishOrderCreated", mock.Anything, mock.Anything).
		WaitUntil(release).
		Run(func(args mock.Arguments) {
			ctx := args.Get(0).(context.Context)
			errAtPublish = ctx.Err()
			_, hasDeadline = ctx.Deadline()
		}).
		Return(nil)

	reqCtx, cancelReq := context.WithCancel(context.Background())
	returned := make(chan struct{})
	go func() {
		defer close(returned)
		_, err := f.service.CreateOrder(reqCtx, 1, in)
		assert.NoError(t, err)
	}()

	select {
	case <-returned:
	case <-time.After(2 * time.Second):
		t.Fatal("CreateOrder blocked on the publisher")
	}

	// The request finishing must not cancel the delivery.
	cancelReq()

	short, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, f.service.Drain(short), context.DeadlineExceeded)

	close(release)
	require.NoError(t, f.service.Drain(context.Background()))
	f.publisher.AssertExpectations(t)
	assert.NoError(t, errAtPublish, "request cancellation leaked into the publish")
	assert.True(t, hasDeadline, "publish must be bounded")
}


func TestOrderService_GetOrder(t *testing.T) {
	f := newOrderFixture()
	f.orders.On("FindByIDForUser", mock.Anything, uint(5), uint(1)).Return(&model.Order{ID: 5, UserID: 1}, nil)
	f.orders.On("FindByIDForUser", mock.Anything, uint(5), uint(2)).Return(nil, gorm.ErrRecordNotFound)

	order, err := f.service.GetOrder(context.Background(), 1, 5)
	require.NoError(t, err)
	assert.Equal(t, uint(5), order.ID)

	_, err = f.service.GetOrder(context.Background(), 2, 5)
	assert.ErrorIs(t, err, apperrors.ErrOrderNotFound)
}

func TestOrderService_ListOrdersNeverNil(t *testing.T) {
	f := newOrderFixture()
	f.orders.On("ListByUser", mock.Anything, uint(1)).Return(nil, nil)

	orders, err := f.service.ListOrders(context.Background(), 1)
	require.NoError(t, err)
	assert.NotNil(t, orders)
	assert.Empty(t, orders)
}

func TestOrderService_UpdateOrderStatus(t *testing.T) {
	ptr := func(s model.OrderStatus) *model.OrderStatus { return &s }

	t.Run("cancelling restocks items", func(t *testing.T) {
		f := newOrderFixture()
		order := &model.Order{ID: 5, Status: model.OrderStatusPending, Items: []model.OrderItem{
			{ProductID: 1, Quantity: 2}, {ProductID: 2, Quantity: 1},
		}}
		f.orders.On("WithTransaction", mock.Anything).Return(nil)
		f.orders.On("FindByIDForUpdate", mock.Anything, uint(5)).Return(order, nil)
		f.products.On("IncrementStock", mock.Anything, uint(1), 2).Return(nil)
		f.products.On("IncrementStock", mock.Anything, uint(2), 1).Return(nil)
		f.orders.On("Update", mock.Anything, order).Return(nil)
		f.cache.On("InvalidateProducts", mock.Anything, []uint{1, 2}).Return()

		updated, err := f.service.UpdateOrderStatus(context.Background(), 5, UpdateOrderStatusInput{Status: ptr(model.OrderStatusCancelled)})
		require.NoError(t, err)
		assert.Equal(t, model.OrderStatusCancelled, updated.Status)
		f.products.AssertExpectations(t)
		f.cache.AssertExpectations(t)
	})

	t.Run("cancelled is terminal", func(t *testing.T) {
		f := newOrderFixture()
		f.orders.On("WithTransaction", mock.Anything).Return(nil)
		f.orders.On("FindByIDForUpdate", mock.Anything, uint(5)).Return(&model.Order{ID: 5, Status: model.OrderStatusCancelled}, nil)

		_, err := f.service.UpdateOrderStatus(context.Background(), 5, UpdateOrderStatusInput{Status: ptr(model.OrderStatusShipped)})
		assert.ErrorIs(t, err, apperrors.ErrInvalidStatusTransition)
		f.orders.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})

	t.Run("unknown status", func(t *testing.T) {
		f := newOrderFixture()
		_, err := f.service.UpdateOrderStatus(context.Background(), 5, UpdateOrderStatusInput{Status: ptr("lost")})
		assert.ErrorIs(t, err, apperrors.ErrValidation)
	})

	t.Run("empty update", func(t *testing.T) {
		f := newOrderFixture()
		_, err := f.service.UpdateOrderStatus(context.Background(), 5, UpdateOrderStatusInput{})
		assert.ErrorIs(t, err, apperrors.ErrValidation)
	})

	t.Run("missing order", func(t *testing.T) {
		f := newOrderFixture()
		f.orders.On("WithTransaction", mock.Anything).Return(nil)
		f.orders.On("FindByIDForUpdate", mock.Anything, uint(8)).Return(nil, gorm.ErrRecordNotFound)

		code := "BR1"
		_, err := f.service.UpdateOrderStatus(context.Background(), 8, UpdateOrderStatusInput{TrackingCode: &code})
		assert.ErrorIs(t, err, apperrors.ErrOrderNotFound)
	})
}
