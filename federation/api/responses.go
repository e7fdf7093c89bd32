package api

import (
	"net/http"

	"github.com/absmach/dronefl/federation"
	"github.com/absmach/dronefl/pkg/fl"
	"github.com/absmach/dronefl/pkg/netsim"
	"github.com/absmach/supermq"
)

var (
	_ supermq.Response = (*droneResponse)(nil)
	_ supermq.Response = (*listDronesResponse)(nil)
	_ supermq.Response = (*reportResponse)(nil)
	_ supermq.Response = (*listReportsResponse)(nil)
	_ supermq.Response = (*blobResponse)(nil)
)

type droneResponse struct {
	netsim.Profile
	created bool
	deleted bool
}

func (d droneResponse) Code() int {
	if d.created {
		return http.StatusCreated
	}
	if d.deleted {
		return http.StatusNoContent
	}

	return http.StatusOK
}

func (d droneResponse) Headers() map[string]string {
	if d.created {
		return map[string]string{
			"Location": "/drones/" + d.DroneID,
		}
	}

	return map[string]string{}
}

func (d droneResponse) Empty() bool {
	return d.deleted
}

type listDronesResponse struct {
	federation.DronePage
}

func (l listDronesResponse) Code() int {
	return http.StatusOK
}

func (l listDronesResponse) Headers() map[string]string {
	return map[string]string{}
}

func (l listDronesResponse) Empty() bool {
	return false
}

type reportResponse struct {
	fl.Report
}

func (r reportResponse) Code() int {
	return http.StatusOK
}

func (r reportResponse) Headers() map[string]string {
	return map[string]string{}
}

func (r reportResponse) Empty() bool {
	return false
}

type listReportsResponse struct {
	fl.ReportPage
}

func (l listReportsResponse) Code() int {
	return http.StatusOK
}

func (l listReportsResponse) Headers() map[string]string {
	return map[string]string{}
}

func (l listReportsResponse) Empty() bool {
	return false
}

type blobResponse struct {
	fl.BlobVersion
}

func (b blobResponse) Code() int {
	return http.StatusOK
}

func (b blobResponse) Headers() map[string]string {
	return map[string]string{}
}

func (b blobResponse) Empty() bool {
	return false
}
