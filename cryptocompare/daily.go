package cryptocompare

import (
	"encoding/csv"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/etnz/cryptowallet/date"
)

func unixUTC(ts int64) time.Time { return time.Unix(ts, 0).UTC() }

// Candle is one daily OHLCV row of an asset, in USD.
type Candle struct {
	Day        date.Date
	Open       float64
	High       float64
	Low        float64
	Close      float64
	VolumeFrom float64
	VolumeTo   float64
}

var dailyColumns = []string{"day", "open", "high", "low", "close", "volume_from", "volume_to"}

func dailySeriesPath(dir, asset string) string {
	return filepath.Join(dir, fmt.Sprintf("historical_OHLCV_daily_%s.csv", asset))
}

// DailySeries returns the full daily OHLCV history of asset, maintained as an
// incremental CSV cache under dir. The first call for an asset downloads the
// whole history; later calls fetch only the days elapsed since the cached
// tail, and a call within the same day is served entirely from the cache.
// Days the provider reports with a zero close are dropped, they predate the
// asset's listing.
func (c *Client) DailySeries(dir, asset string) ([]Candle, error) {
	if UnsupportedForHistory(asset) {
		return nil, fmt.Errorf("%q: %w", asset, ErrUnsupportedAsset)
	}

	path := dailySeriesPath(dir, asset)
	cached, err := readDailyCache(path)
	if err != nil {
		return nil, err
	}

	limit := -1 // whole history
	if len(cached) > 0 {
		last := cached[len(cached)-1].Day
		limit = date.Today().Sub(last)
		if limit < 1 {
			return cached, nil
		}
	}

	if c.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	queried := asset
	if to, ok := AssetNameMap[asset]; ok {
		queried = to
	}
	fresh, err := c.fetchDaily(queried, limit)
	if err != nil {
		return nil, err
	}

	merged := mergeCandles(cached, fresh)
	if err := writeDailyCache(path, merged); err != nil {
		return nil, err
	}
	return merged, nil
}

// fetchDaily downloads daily candles. A negative limit requests the whole
// history.
func (c *Client) fetchDaily(asset string, limit int) ([]Candle, error) {
	params := url.Values{}
	params.Set("fsym", asset)
	params.Set("tsym", "USD")
	if limit < 0 {
		params.Set("allData", "true")
	} else {
		params.Set("limit", strconv.Itoa(limit))
	}

	var envelope struct {
		Response string
		Message  string
		Type     int
		Data     struct {
			Data []struct {
				Time       int64   `json:"time"`
				Open       float64 `json:"open"`
				High       float64 `json:"high"`
				Low        float64 `json:"low"`
				Close      float64 `json:"close"`
				VolumeFrom float64 `json:"volumefrom"`
				VolumeTo   float64 `json:"volumeto"`
			}
		}
	}
	if err := c.jwget("/data/v2/histoday", params, &envelope); err != nil {
		return nil, err
	}
	if envelope.Response != "Success" {
		return nil, &ProviderError{Type: envelope.Type, Message: envelope.Message}
	}

	candles := make([]Candle, 0, len(envelope.Data.Data))
	for _, row := range envelope.Data.Data {
		candles = append(candles, Candle{
			Day:        date.Of(unixUTC(row.Time)),
			Open:       row.Open,
			High:       row.High,
			Low:        row.Low,
			Close:      row.Close,
			VolumeFrom: row.VolumeFrom,
			VolumeTo:   row.VolumeTo,
		})
	}
	return candles, nil
}

// mergeCandles overlays fresh candles on the cached ones. The delta fetch
// returns the cached tail day again, the fresh value wins. Zero-close days
// are dropped.
func mergeCandles(cached, fresh []Candle) []Candle {
	byDay := make(map[date.Date]Candle, len(cached)+len(fresh))
	for _, candle := range cached {
		byDay[candle.Day] = candle
	}
	for _, candle := range fresh {
		byDay[candle.Day] = candle
	}
	merged := make([]Candle, 0, len(byDay))
	for _, candle := range byDay {
		if candle.Close == 0 {
			continue
		}
		merged = append(merged, candle)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].Day.Before(merged[j].Day) })
	return merged
}

func readDailyCache(path string) ([]Candle, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = len(dailyColumns)
	if _, err := cr.Read(); err == io.EOF {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("cannot read daily cache %s: %w", path, err)
	}

	var candles []Candle
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("cannot read daily cache %s: %w", path, err)
		}
		day, err := date.Parse(record[0])
		if err != nil {
			return nil, fmt.Errorf("invalid daily cache %s: %w", path, err)
		}
		values := make([]float64, 6)
		for i := range values {
			values[i], err = strconv.ParseFloat(record[i+1], 64)
			if err != nil {
				return nil, fmt.Errorf("invalid daily cache %s: %w", path, err)
			}
		}
		candles = append(candles, Candle{
			Day:        day,
			Open:       values[0],
			High:       values[1],
			Low:        values[2],
			Close:      values[3],
			VolumeFrom: values[4],
			VolumeTo:   values[5],
		})
	}
	return candles, nil
}

func writeDailyCache(path string, candles []Candle) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write(dailyColumns); err != nil {
		return err
	}
	for _, candle := range candles {
		record := []string{
			candle.Day.String(),
			strconv.FormatFloat(candle.Open, 'f', -1, 64),
			strconv.FormatFloat(candle.High, 'f', -1, 64),
			strconv.FormatFloat(candle.Low, 'f', -1, 64),
			strconv.FormatFloat(candle.Close, 'f', -1, 64),
			strconv.FormatFloat(candle.VolumeFrom, 'f', -1, 64),
			strconv.FormatFloat(candle.VolumeTo, 'f', -1, 64),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	return f.Close()
}
