package console

import (
	"context"

	"go.uber.org/zap"

	"github.com/personaliza/api/internal/storefront/apiclient"
)

// OptimisticCommand applies a tentative change to one order in the list and detail views,
// then either commits the server response or restores the captured snapshot.
type OptimisticCommand struct {
	console *Console
	orderID string
	mutate  func(*apiclient.Order)

	listSnapshot   *apiclient.Order
	detailSnapshot *apiclient.Order
}

// NewCommand prepares a command for orderID. mutate is applied to every local copy.
func (c *Console) NewCommand(orderID string, mutate func(*apiclient.Order)) *OptimisticCommand {
	return &OptimisticCommand{console: c, orderID: orderID, mutate: mutate}
}

// Apply snapshots the local copies of the order and applies the tentative change.
func (cmd *OptimisticCommand) Apply() {
	c := cmd.console
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := c.indexOf(cmd.orderID); i >= 0 {
		snapshot := cloneOrder(c.orders[i])
		cmd.listSnapshot = &snapshot
		cmd.mutate(&c.orders[i])
	}
	if c.detail != nil && c.detail.ID == cmd.orderID {
		snapshot := cloneOrder(*c.detail)
		cmd.detailSnapshot = &snapshot
		cmd.mutate(c.detail)
	}
}

// Commit replaces the local copies with the order returned by the server.
func (cmd *OptimisticCommand) Commit(server apiclient.Order) {
	c := cmd.console
	c.mu.Lock()
	defer c.mu.Unlock()
	if server.ID == "" {
		return
	}
	if i := c.indexOf(cmd.orderID); i >= 0 {
		c.orders[i] = cloneOrder(server)
	}
	if c.detail != nil && c.detail.ID == cmd.orderID {
		detail := cloneOrder(server)
		c.detail = &detail
	}
}

// Rollback restores the copies captured by Apply.
func (cmd *OptimisticCommand) Rollback() {
	c := cmd.console
	c.mu.Lock()
	defer c.mu.Unlock()
	if cmd.listSnapshot != nil {
		if i := c.indexOf(cmd.orderID); i >= 0 {
			c.orders[i] = cloneOrder(*cmd.listSnapshot)
		}
	}
	if cmd.detailSnapshot != nil && c.detail != nil && c.detail.ID == cmd.orderID {
		detail := cloneOrder(*cmd.detailSnapshot)
		c.detail = &detail
	}
}

// Run applies the command, performs call and commits or rolls back on its result. Failures are
// returned to the caller for display; nothing is retried.
func (cmd *OptimisticCommand) Run(ctx context.Context, call func(ctx context.Context) (apiclient.Order, error)) (apiclient.Order, error) {
	cmd.Apply()
	order, err := call(ctx)
	if err != nil {
		cmd.Rollback()
		cmd.console.logger.Warn("console: order update rolled back",
			zap.String("orderId", cmd.orderID),
			zap.String("kind", apiclient.ClassifyError(err).String()),
			zap.Error(err),
		)
		return apiclient.Order{}, err
	}
	cmd.Commit(order)
	return order, nil
}

// indexOf expects c.mu to be held.
func (c *Console) indexOf(orderID string) int {
	for i := range c.orders {
		if c.orders[i].ID == orderID {
			return i
		}
	}
	return -1
}
