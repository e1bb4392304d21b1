package yocto

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hypernets/sequencer/pkg/log"
	"github.com/imroc/req/v3"
	"go.uber.org/zap"
)

const (
	RequestRetryMinWaitTime = 200 * time.Millisecond
	RequestRetryMaxWaitTime = time.Second
)

type Modules struct {
	Meteo  string
	GPS    string
	WakeUp string
}

// Hub reads the Yoctopuce modules through the VirtualHub REST interface,
// values are addressed as /bySerial/<serial>/api/<function>/<attribute>.
type Hub struct {
	client  *req.Client
	modules Modules
}

func NewHub(baseURL string, timeout time.Duration, modules Modules, debug bool) *Hub {
	c := req.C()
	if debug {
		c.EnableDebugLog()
	}

	c.SetBaseURL(strings.TrimRight(baseURL, "/"))
	c.SetTimeout(timeout)
	c.SetCommonRetryCount(2)
	c.SetCommonRetryBackoffInterval(RequestRetryMinWaitTime, RequestRetryMaxWaitTime)

	return &Hub{client: c, modules: modules}
}

// GetClient Use this for tests to set the transport to mock
func (h *Hub) GetClient() *req.Client {
	return h.client
}

func (h *Hub) BaseURL() string {
	return h.client.BaseURL
}

func attributePath(serial, function, attribute string) string {
	return fmt.Sprintf("/bySerial/%s/api/%s/%s", serial, function, attribute)
}

func (h *Hub) get(ctx context.Context, serial, function, attribute string) (string, error) {
	if serial == "" {
		return "", fmt.Errorf("%w: %s", ErrNoModule, function)
	}

	resp, err := h.client.R().
		SetContext(ctx).
		Get(attributePath(serial, function, attribute))
	if err := ErrorFromResponse(err, resp); err != nil {
		return "", err
	}

	return strings.Trim(strings.TrimSpace(resp.String()), `"`), nil
}

func (h *Hub) getFloat(ctx context.Context, serial, function, attribute string) (float64, error) {
	s, err := h.get(ctx, serial, function, attribute)
	if err != nil {
		return 0, err
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%s/%s: %q is not a number", function, attribute, s)
	}
	return v, nil
}

// Reading is one meteo sensor value
type Reading struct {
	Name  string
	Value float64
	Unit  string
}

func (r Reading) String() string {
	return fmt.Sprintf("%s: %.2f %s", r.Name, r.Value, r.Unit)
}

var MeteoFunctions = []string{"temperature", "humidity", "pressure", "lightSensor"}

// Meteo reads all sensors of the meteo module. A failing sensor is
// logged and left out.
func (h *Hub) Meteo(ctx context.Context) ([]Reading, error) {
	if h.modules.Meteo == "" {
		return nil, fmt.Errorf("%w: meteo", ErrNoModule)
	}

	readings := make([]Reading, 0, len(MeteoFunctions))
	var lastErr error
	for _, fn := range MeteoFunctions {
		v, err := h.getFloat(ctx, h.modules.Meteo, fn, "currentValue")
		if err != nil {
			log.Warn("meteo sensor unavailable", zap.String("sensor", fn), zap.Error(err))
			lastErr = err
			continue
		}

		unit, err := h.get(ctx, h.modules.Meteo, fn, "unit")
		if err != nil {
			log.Debug("meteo unit unavailable", zap.String("sensor", fn), zap.Error(err))
		}
		readings = append(readings, Reading{Name: fn, Value: v, Unit: unit})
	}

	if len(readings) == 0 {
		return nil, lastErr
	}
	return readings, nil
}

// LightLevel reads the meteo light sensor
func (h *Hub) LightLevel(ctx context.Context) (float64, error) {
	return h.getFloat(ctx, h.modules.Meteo, "lightSensor", "currentValue")
}

// Fix is a position reported by the GPS module
type Fix struct {
	Latitude  float64
	Longitude float64
	DateTime  string
}

// Location reads the GPS module, coordinates are reported in milli degrees
func (h *Hub) Location(ctx context.Context) (Fix, error) {
	lat, err := h.getFloat(ctx, h.modules.GPS, "latitude", "currentValue")
	if err != nil {
		return Fix{}, err
	}
	lon, err := h.getFloat(ctx, h.modules.GPS, "longitude", "currentValue")
	if err != nil {
		return Fix{}, err
	}
	dt, err := h.get(ctx, h.modules.GPS, "gps", "dateTime")
	if err != nil {
		log.Debug("gps time unavailable", zap.Error(err))
	}

	return Fix{Latitude: lat / 1000, Longitude: lon / 1000, DateTime: dt}, nil
}

// PowerOffCountdown is the time left before the wake-up monitor cuts the
// power, zero when no shutdown is scheduled.
func (h *Hub) PowerOffCountdown(ctx context.Context) (time.Duration, error) {
	v, err := h.getFloat(ctx, h.modules.WakeUp, "wakeUpMonitor", "sleepCountdown")
	if err != nil {
		return 0, err
	}
	if v < 0 {
		v = 0
	}
	return time.Duration(v * float64(time.Second)), nil
}
