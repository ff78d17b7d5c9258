package rpc

import (
	"net/http"

	"agora/observability"
	"agora/observability/metrics"
)

type marketIDParams struct {
	MarketID uint64 `json:"marketId"`
}

type tradeParams struct {
	MarketID uint64 `json:"marketId"`
	From     string `json:"from"`
	// Amount is the value spent on a buy or the units returned on a sell.
	Amount string `json:"amount"`
	// MinOut bounds slippage: minimum units out on a buy, minimum value out
	// on a sell. Empty means no bound.
	MinOut string `json:"minOut,omitempty"`
}

type quoteParams struct {
	MarketID uint64 `json:"marketId"`
	Amount   string `json:"amount"`
}

type priceResponse struct {
	MarketID uint64 `json:"marketId"`
	Price    string `json:"price"`
}

type quoteResponse struct {
	MarketID uint64 `json:"marketId"`
	Amount   string `json:"amount"`
	Result   string `json:"result"`
}

type marketListResponse struct {
	Markets []*marketView `json:"markets"`
}

func (s *Server) recordTrade(marketID uint64, side string) {
	market, ok, err := s.manager.LaunchGetMarket(marketID)
	if err != nil || !ok {
		return
	}
	observability.Events().RecordTrade(market.Asset, side)
	metrics.Launch().SetRaised(market.Asset, market.Raised)
}

func (s *Server) handleLaunchGetMarket(w http.ResponseWriter, req *RPCRequest) {
	var params marketIDParams
	if rpcErr := decodeSingleParam(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	market, err := s.launch.GetMarket(params.MarketID)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, newMarketView(market))
}

func (s *Server) handleLaunchListMarkets(w http.ResponseWriter, req *RPCRequest) {
	if len(req.Params) != 0 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "no parameters expected", nil)
		return
	}
	ids, err := s.manager.LaunchMarketIDs()
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, err.Error(), nil)
		return
	}
	markets := make([]*marketView, 0, len(ids))
	for _, id := range ids {
		market, ok, err := s.manager.LaunchGetMarket(id)
		if err != nil {
			writeError(w, http.StatusInternalServerError, req.ID, codeServerError, err.Error(), nil)
			return
		}
		if !ok {
			continue
		}
		markets = append(markets, newMarketView(market))
	}
	writeResult(w, req.ID, marketListResponse{Markets: markets})
}

func (s *Server) handleLaunchGetCurrentPrice(w http.ResponseWriter, req *RPCRequest) {
	var params marketIDParams
	if rpcErr := decodeSingleParam(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	price, err := s.launch.CurrentPrice(params.MarketID)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, priceResponse{MarketID: params.MarketID, Price: formatAmount(price)})
}

func (s *Server) handleLaunchCalculatePurchaseReturn(w http.ResponseWriter, req *RPCRequest) {
	var params quoteParams
	if rpcErr := decodeSingleParam(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	spend, err := parsePositiveAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	units, err := s.launch.CalculatePurchaseReturn(params.MarketID, spend)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, quoteResponse{MarketID: params.MarketID, Amount: params.Amount, Result: formatAmount(units)})
}

func (s *Server) handleLaunchCalculateSaleReturn(w http.ResponseWriter, req *RPCRequest) {
	var params quoteParams
	if rpcErr := decodeSingleParam(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	units, err := parsePositiveAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	refund, err := s.launch.CalculateSaleReturn(params.MarketID, units)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, quoteResponse{MarketID: params.MarketID, Amount: params.Amount, Result: formatAmount(refund)})
}

func (s *Server) handleLaunchBuy(w http.ResponseWriter, req *RPCRequest) {
	var params tradeParams
	if rpcErr := decodeSingleParam(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	buyer, err := parseAddress(params.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	spend, err := parsePositiveAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	minUnits, err := parseNonNegativeAmount(params.MinOut)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}

	var receipt *receiptView
	txErr := s.withTransaction(func() error {
		result, err := s.launch.Buy(params.MarketID, buyer, spend, minUnits)
		if err != nil {
			return err
		}
		receipt = newReceiptView(result)
		return nil
	})
	if txErr != nil {
		writeEngineError(w, req.ID, txErr)
		return
	}
	s.recordTrade(params.MarketID, "buy")
	writeResult(w, req.ID, receipt)
}

func (s *Server) handleLaunchSell(w http.ResponseWriter, req *RPCRequest) {
	var params tradeParams
	if rpcErr := decodeSingleParam(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	seller, err := parseAddress(params.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	units, err := parsePositiveAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	minOut, err := parseNonNegativeAmount(params.MinOut)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}

	var receipt *receiptView
	txErr := s.withTransaction(func() error {
		result, err := s.launch.Sell(params.MarketID, seller, units, minOut)
		if err != nil {
			return err
		}
		receipt = newReceiptView(result)
		return nil
	})
	if txErr != nil {
		writeEngineError(w, req.ID, txErr)
		return
	}
	s.recordTrade(params.MarketID, "sell")
	writeResult(w, req.ID, receipt)
}
