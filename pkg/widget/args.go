package widget

// Args is the validated argument set of one tool invocation.
type Args interface {
	Kind() Kind
	sealedArgs()
}

// StockArgs are the arguments of showStockPrice.
type StockArgs struct {
	Symbol string `json:"symbol" jsonschema:"minLength=1,pattern=\\S,maxLength=12,description=The stock symbol such as AAPL or GOOGL"`
}

// WeatherArgs are the arguments of showWeather.
type WeatherArgs struct {
	Location string `json:"location" jsonschema:"minLength=1,pattern=\\S,description=The city or location name"`
}

// KanbanArgs are the arguments of createKanbanBoard.
type KanbanArgs struct {
	Title string `json:"title" jsonschema:"minLength=1,pattern=\\S,description=The title of the project or board"`
}

func (StockArgs) Kind() Kind   { return KindStock }
func (WeatherArgs) Kind() Kind { return KindWeather }
func (KanbanArgs) Kind() Kind  { return KindKanban }

func (StockArgs) sealedArgs()   {}
func (WeatherArgs) sealedArgs() {}
func (KanbanArgs) sealedArgs()  {}
