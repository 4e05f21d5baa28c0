package report

import (
	"time"

	si "github.com/elastic/go-sysinfo"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"app_freeze/adb"
)

// OperationResult is one package's outcome within a bulk run.
type OperationResult struct {
	Package string
	Success bool
	Error   string
}

// OperationReport is everything written out after a bulk enable or disable.
type OperationReport struct {
	ID        uuid.UUID
	Device    adb.Device
	Action    adb.AppAction
	Timestamp time.Time
	Host      string
	Results   []OperationResult
}

// NewReport orders results by order. Packages in order that have no result (a run that stopped
// early) are recorded as failed so the report still accounts for every requested package.
func NewReport(dev adb.Device, action adb.AppAction, results map[string]adb.OpResult, order []string) *OperationReport {
	rep := &OperationReport{
		ID:        uuid.New(),
		Device:    dev,
		Action:    action,
		Timestamp: time.Now(),
		Host:      hostName(),
		Results:   make([]OperationResult, 0, len(order)),
	}
	for _, pkg := range order {
		res, ok := results[pkg]
		if !ok {
			rep.Results = append(rep.Results, OperationResult{Package: pkg, Error: "not attempted"})
			continue
		}
		rep.Results = append(rep.Results, OperationResult{
			Package: pkg,
			Success: res.Success,
			Error:   res.Error,
		})
	}
	return rep
}

func (self *OperationReport) Total() int {
	return len(self.Results)
}

func (self *OperationReport) SuccessCount() int {
	n := 0
	for _, r := range self.Results {
		if r.Success {
			n++
		}
	}
	return n
}

func (self *OperationReport) FailureCount() int {
	return self.Total() - self.SuccessCount()
}

func hostName() string {
	host, err := si.Host()
	if err != nil {
		log.WithFields(log.Fields{
			"type":  "host_info_err",
			"error": err,
		}).Debug("Could not read host info")
		return ""
	}
	return host.Info().Hostname
}
