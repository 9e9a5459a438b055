package metrics

type nopCollector struct{}

var _ Collector = &nopCollector{}

var NopCollector = &nopCollector{}

func (c *nopCollector) TransactionSubmitted(uint64)              {}
func (c *nopCollector) TransactionDropped(uint64)                {}
func (c *nopCollector) TransactionReplaced(uint64)               {}
func (c *nopCollector) TransactionFinalized(uint64, string)      {}
func (c *nopCollector) PendingTransactions(uint64, int)          {}
func (c *nopCollector) WatcherPollFailed(uint64)                 {}
func (c *nopCollector) MeasureConfirmationBlocks(uint64, uint64) {}
