package sdk

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/absmach/dronefl/pkg/fl"
)

const (
	roundsEndpoint = "/rounds"
	modelEndpoint  = "/model"
)

func (sdk *flSDK) GetRound(round uint64) (fl.Report, error) {
	url := sdk.coordinatorURL + roundsEndpoint + "/" + strconv.FormatUint(round, 10)

	body, err := sdk.processRequest(http.MethodGet, url, nil, http.StatusOK)
	if err != nil {
		return fl.Report{}, err
	}

	var r fl.Report
	if err := json.Unmarshal(body, &r); err != nil {
		return fl.Report{}, err
	}

	return r, nil
}

func (sdk *flSDK) ListRounds(offset, limit uint64) (fl.ReportPage, error) {
	url := sdk.coordinatorURL + roundsEndpoint + pageQuery(offset, limit)

	body, err := sdk.processRequest(http.MethodGet, url, nil, http.StatusOK)
	if err != nil {
		return fl.ReportPage{}, err
	}

	var page fl.ReportPage
	if err := json.Unmarshal(body, &page); err != nil {
		return fl.ReportPage{}, err
	}

	return page, nil
}

func (sdk *flSDK) GetModel() (fl.BlobVersion, error) {
	url := sdk.coordinatorURL + modelEndpoint

	body, err := sdk.processRequest(http.MethodGet, url, nil, http.StatusOK)
	if err != nil {
		return fl.BlobVersion{}, err
	}

	var v fl.BlobVersion
	if err := json.Unmarshal(body, &v); err != nil {
		return fl.BlobVersion{}, err
	}

	return v, nil
}
