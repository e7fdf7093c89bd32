package sdk

import (
	"encoding/json"
	"net/http"

	"github.com/absmach/dronefl/pkg/netsim"
)

const dronesEndpoint = "/drones"

func (sdk *flSDK) RegisterDrone(p netsim.Profile) (netsim.Profile, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return netsim.Profile{}, err
	}

	url := sdk.coordinatorURL + dronesEndpoint

	body, err := sdk.processRequest(http.MethodPost, url, data, http.StatusCreated)
	if err != nil {
		return netsim.Profile{}, err
	}

	var d netsim.Profile
	if err := json.Unmarshal(body, &d); err != nil {
		return netsim.Profile{}, err
	}

	return d, nil
}

func (sdk *flSDK) GetDrone(id string) (netsim.Profile, error) {
	url := sdk.coordinatorURL + dronesEndpoint + "/" + id

	body, err := sdk.processRequest(http.MethodGet, url, nil, http.StatusOK)
	if err != nil {
		return netsim.Profile{}, err
	}

	var d netsim.Profile
	if err := json.Unmarshal(body, &d); err != nil {
		return netsim.Profile{}, err
	}

	return d, nil
}

func (sdk *flSDK) ListDrones(offset, limit uint64) (DronePage, error) {
	url := sdk.coordinatorURL + dronesEndpoint + pageQuery(offset, limit)

	body, err := sdk.processRequest(http.MethodGet, url, nil, http.StatusOK)
	if err != nil {
		return DronePage{}, err
	}

	var page DronePage
	if err := json.Unmarshal(body, &page); err != nil {
		return DronePage{}, err
	}

	return page, nil
}

func (sdk *flSDK) DeregisterDrone(id string) error {
	url := sdk.coordinatorURL + dronesEndpoint + "/" + id

	_, err := sdk.processRequest(http.MethodDelete, url, nil, http.StatusNoContent)

	return err
}
