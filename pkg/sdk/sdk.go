package sdk

import (
	"bytes"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/absmach/dronefl/pkg/fl"
	"github.com/absmach/dronefl/pkg/netsim"
)

const CTJSON string = "application/json"

type SDK interface {
	// RegisterDrone registers a drone with its network profile.
	//
	// example:
	//  drone := netsim.Profile{
	//    DroneID:    "drone-1",
	//    Priority:   fl.PriorityHigh,
	//    PacketLoss: 0.1,
	//  }
	//  drone, _ := sdk.RegisterDrone(drone)
	//  fmt.Println(drone)
	RegisterDrone(p netsim.Profile) (netsim.Profile, error)

	// GetDrone gets a registered drone by id.
	//
	// example:
	//  drone, _ := sdk.GetDrone("drone-1")
	//  fmt.Println(drone)
	GetDrone(id string) (netsim.Profile, error)

	// ListDrones lists registered drones.
	//
	// example:
	//  page, _ := sdk.ListDrones(0, 10)
	//  fmt.Println(page)
	ListDrones(offset, limit uint64) (DronePage, error)

	// DeregisterDrone removes a drone from the fleet.
	//
	// example:
	//  _ := sdk.DeregisterDrone("drone-1")
	DeregisterDrone(id string) error

	// GetRound gets the report of a round of the current run.
	//
	// example:
	//  report, _ := sdk.GetRound(3)
	//  fmt.Println(report.Accuracy)
	GetRound(round uint64) (fl.Report, error)

	// ListRounds lists round reports of the current run.
	//
	// example:
	//  page, _ := sdk.ListRounds(0, 10)
	//  fmt.Println(page)
	ListRounds(offset, limit uint64) (fl.ReportPage, error)

	// GetModel gets the currently committed blob version.
	//
	// example:
	//  model, _ := sdk.GetModel()
	//  fmt.Println(model.Version, model.Digest)
	GetModel() (fl.BlobVersion, error)
}

type DronePage struct {
	Offset uint64           `json:"offset"`
	Limit  uint64           `json:"limit"`
	Total  uint64           `json:"total"`
	Drones []netsim.Profile `json:"drones"`
}

type flSDK struct {
	coordinatorURL string
	client         *http.Client
}

type Config struct {
	CoordinatorURL  string
	TLSVerification bool
}

func NewSDK(cfg Config) SDK {
	return &flSDK{
		coordinatorURL: strings.TrimSuffix(cfg.CoordinatorURL, "/"),
		client: &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					InsecureSkipVerify: !cfg.TLSVerification,
				},
			},
		},
	}
}

type errorRes struct {
	Err string `json:"error"`
}

func (sdk *flSDK) processRequest(method, reqURL string, data []byte, expectedRespCode int) ([]byte, error) {
	req, err := http.NewRequest(method, reqURL, bytes.NewReader(data))
	if err != nil {
		return []byte{}, err
	}

	req.Header.Add("Content-Type", CTJSON)

	resp, err := sdk.client.Do(req)
	if err != nil {
		return []byte{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return []byte{}, err
	}

	if resp.StatusCode != expectedRespCode {
		var e errorRes
		if json.Unmarshal(body, &e) == nil && e.Err != "" {
			return []byte{}, fmt.Errorf("unexpected response code: %d: %s", resp.StatusCode, e.Err)
		}

		return []byte{}, fmt.Errorf("unexpected response code: %d", resp.StatusCode)
	}

	return body, nil
}

func pageQuery(offset, limit uint64) string {
	queries := make([]string, 0)
	if offset > 0 {
		queries = append(queries, fmt.Sprintf("offset=%d", offset))
	}
	if limit > 0 {
		queries = append(queries, fmt.Sprintf("limit=%d", limit))
	}
	if len(queries) == 0 {
		return ""
	}

	return "?" + strings.Join(queries, "&")
}
