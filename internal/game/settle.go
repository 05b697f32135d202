package game

// Settlement pipeline. An order can be targeted by its own horizon timer
// and by a game-over / shutdown sweep in the same instant; the guard plus
// the presence check below make the pair of call sites settle exactly once.

// settleOrderLocked resolves one pending order against the current price.
// Caller must hold r.mu.
func (r *Room) settleOrderLocked(order *PendingOrder) {
	if !r.deps.Guard.TryAcquire(order.ID) {
		return // in flight at the other call site
	}
	defer r.deps.Guard.Release(order.ID)

	if _, ok := r.pendingOrders[order.ID]; !ok {
		return // already settled
	}
	// Once claimed the order comes out; it is never re-inserted.
	delete(r.pendingOrders, order.ID)

	if len(r.Players) < 2 {
		return // a disconnect raced the timer; no fund mutation
	}

	finalPrice := r.deps.Feed.Price()
	var priceChange float64
	if order.PriceAtOrder != 0 {
		priceChange = (finalPrice - order.PriceAtOrder) / order.PriceAtOrder
	}

	// Strict inequalities: an exactly flat price settles both directions
	// as incorrect.
	correct := (order.CoinKind == CoinCall && priceChange > 0) ||
		(order.CoinKind == CoinPut && priceChange < 0)

	idx := 0
	if !order.IsPlayer1 {
		idx = 1
	}
	orderer := r.Players[idx]
	opponent := r.Players[1-idx]

	impact := orderer.Multiplier()
	if correct {
		transfer(opponent, orderer, impact)
		orderer.Score++
		r.shiftTugLocked(order.IsPlayer1, impact)
	} else {
		transfer(orderer, opponent, impact)
		r.shiftTugLocked(!order.IsPlayer1, impact)
	}

	r.broadcastLocked(EventOrderSettled, OrderSettledPayload{
		OrderID:      order.ID,
		PlayerID:     order.PlayerID,
		PlayerName:   order.PlayerName,
		CoinType:     order.CoinKind,
		IsCorrect:    correct,
		PriceAtOrder: order.PriceAtOrder,
		FinalPrice:   finalPrice,
	})

	r.checkKnockoutLocked()
}

// SettleOrder is the public entry point used by timers and sweeps that do
// not already hold the room lock.
func (r *Room) SettleOrder(order *PendingOrder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settleOrderLocked(order)
}
