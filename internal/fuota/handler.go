// Package fuota handles the fragmented data block transport commands sent to
// the devices and feeds the data fragments to the fragment decoder.
package fuota

import (
	"context"
	"fmt"
	"hash/crc32"
	"io/ioutil"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/brocaar/chirpstack-fuota-node/internal/backend"
	"github.com/brocaar/chirpstack-fuota-node/internal/config"
	"github.com/brocaar/chirpstack-fuota-node/internal/flash"
	"github.com/brocaar/chirpstack-fuota-node/internal/fragdecoder"
	"github.com/brocaar/chirpstack-fuota-node/internal/framelog"
	"github.com/brocaar/chirpstack-fuota-node/internal/logging"
	"github.com/brocaar/chirpstack-fuota-node/internal/storage"
	"github.com/brocaar/lorawan"
	"github.com/brocaar/lorawan/applayer/fragmentation"
)

// Event types.
const (
	EventSetup  = "setup"
	EventDone   = "done"
	EventDelete = "delete"
)

// errors
var (
	ErrUnknownSession    = errors.New("fuota: unknown fragmentation-session")
	ErrUnsupportedMatrix = errors.New("fuota: fragmentation matrix not supported")
)

// EventPublisher publishes the fragmentation-session events.
type EventPublisher interface {
	PublishEvent(devEUI lorawan.EUI64, event string, v interface{}) error
}

// SetupEvent is published when a fragmentation-session is set up.
type SetupEvent struct {
	SessionID  uuid.UUID `json:"sessionID"`
	FragIndex  uint8     `json:"fragIndex"`
	NbFrag     uint16    `json:"nbFrag"`
	FragSize   uint8     `json:"fragSize"`
	Padding    uint8     `json:"padding"`
	Descriptor [4]byte   `json:"descriptor"`
}

// DeleteEvent is published when a fragmentation-session is deleted.
type DeleteEvent struct {
	SessionID uuid.UUID `json:"sessionID"`
	FragIndex uint8     `json:"fragIndex"`
}

// Result holds the outcome of a fragmentation-session. It is published as
// the done event.
type Result struct {
	SessionID uuid.UUID     `json:"sessionID"`
	DevEUI    lorawan.EUI64 `json:"devEUI"`
	FragIndex uint8         `json:"fragIndex"`
	Status    string        `json:"status"`
	Lost      uint16        `json:"lost"`
	Size      uint32        `json:"size"`
	CRC       uint32        `json:"crc"`
	Path      string        `json:"path,omitempty"`
}

type deviceSession struct {
	sync.Mutex

	id         uuid.UUID
	devEUI     lorawan.EUI64
	fragIndex  uint8
	padding    uint8
	descriptor [4]byte
	createdAt  time.Time

	storage flash.Storage
	decoder *fragdecoder.Session
	result  *Result
}

func (ds *deviceSession) close() {
	if ds.storage != nil {
		if err := ds.storage.Close(); err != nil {
			log.WithError(err).WithField("dev_eui", ds.devEUI).Error("fuota: close storage error")
		}
	}
	ds.storage = nil
	ds.decoder = nil
}

// Handler handles the fragmentation commands of all devices.
type Handler struct {
	sync.RWMutex
	wg sync.WaitGroup

	fPort         uint8
	outputDir     string
	limits        fragdecoder.Limits
	storageConfig flash.Config
	publisher     EventPublisher

	sessions map[lorawan.EUI64]*deviceSession
}

// NewHandler creates a new Handler. The publisher may be nil.
func NewHandler(c config.Config, p EventPublisher) *Handler {
	return &Handler{
		fPort:         c.FUOTA.FPort,
		outputDir:     c.FUOTA.OutputDir,
		limits:        c.DecoderLimits(),
		storageConfig: c.FUOTA.Storage,
		publisher:     p,
		sessions:      make(map[lorawan.EUI64]*deviceSession),
	}
}

// Start consumes the downlink frames of the given backend until its channel
// is closed. Frames are handled one at a time, in the order received.
func (h *Handler) Start(b backend.Backend) {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()

		for frame := range b.DownlinkFrameChan() {
			ctx, err := logging.NewContext(context.Background())
			if err != nil {
				log.WithError(err).Error("fuota: create context error")
				ctx = context.Background()
			}

			if err := h.HandleDownlink(ctx, frame); err != nil {
				log.WithFields(log.Fields{
					"dev_eui": frame.DevEUI,
					"f_port":  frame.FPort,
					"ctx_id":  ctx.Value(logging.ContextIDKey),
				}).WithError(err).Error("fuota: handle downlink frame error")
			}
		}
	}()
}

// Stop waits until the downlink frames have been consumed and closes all
// sessions. The backend must be closed first.
func (h *Handler) Stop() error {
	h.wg.Wait()
	return h.Close()
}

// Close closes all sessions.
func (h *Handler) Close() error {
	h.Lock()
	defer h.Unlock()

	for devEUI, ds := range h.sessions {
		ds.Lock()
		ds.close()
		ds.Unlock()
		delete(h.sessions, devEUI)
	}
	return nil
}

// HandleDownlink handles a single downlink frame. Frames on other FPorts are
// ignored.
func (h *Handler) HandleDownlink(ctx context.Context, frame backend.DownlinkFrame) error {
	if frame.FPort != h.fPort {
		return nil
	}

	var cmd fragmentation.Command
	if err := cmd.UnmarshalBinary(false, frame.Data); err != nil {
		commandErrorCounter().Inc()
		err = errors.Wrap(err, "unmarshal fragmentation command error")
		h.logFrame(ctx, frame, "", err)
		return err
	}

	var err error
	var command string
	switch pl := cmd.Payload.(type) {
	case *fragmentation.FragSessionSetupReqPayload:
		command = "FragSessionSetupReq"
		err = h.setup(ctx, frame.DevEUI, pl)
	case *fragmentation.FragSessionDeleteReqPayload:
		command = "FragSessionDeleteReq"
		err = h.delete(ctx, frame.DevEUI, pl)
	case *fragmentation.DataFragmentPayload:
		command = "DataFragment"
		err = h.dataFragment(ctx, frame.DevEUI, pl)
	default:
		command = fmt.Sprintf("%v", cmd.CID)
		log.WithFields(log.Fields{
			"dev_eui": frame.DevEUI,
			"cid":     cmd.CID,
			"ctx_id":  ctx.Value(logging.ContextIDKey),
		}).Debug("fuota: ignoring fragmentation command")
	}

	commandCounter(command).Inc()
	if err != nil {
		commandErrorCounter().Inc()
	}
	h.logFrame(ctx, frame, command, err)

	return err
}

// logFrame publishes the handled command to the device frame log.
func (h *Handler) logFrame(ctx context.Context, frame backend.DownlinkFrame, command string, err error) {
	fl := framelog.FrameLog{
		DevEUI:     frame.DevEUI,
		FPort:      frame.FPort,
		Command:    command,
		Data:       frame.Data,
		ReceivedAt: time.Now().UTC(),
	}
	if err != nil {
		fl.Error = err.Error()
	}

	if err := framelog.LogFrameForDevice(ctx, fl); err != nil {
		log.WithError(err).WithField("dev_eui", frame.DevEUI).Error("fuota: log frame error")
	}
}

// Status returns the decoder status of the session of the given device.
func (h *Handler) Status(devEUI lorawan.EUI64) (fragdecoder.SessionStatus, error) {
	ds, err := h.session(devEUI)
	if err != nil {
		return fragdecoder.SessionStatus{}, err
	}

	ds.Lock()
	defer ds.Unlock()
	if ds.decoder == nil {
		return fragdecoder.SessionStatus{}, ErrUnknownSession
	}
	return ds.decoder.Status(), nil
}

// Result returns the result of the session of the given device. The bool is
// false while the session is ongoing.
func (h *Handler) Result(devEUI lorawan.EUI64) (Result, bool, error) {
	ds, err := h.session(devEUI)
	if err != nil {
		return Result{}, false, err
	}

	ds.Lock()
	defer ds.Unlock()
	if ds.result == nil {
		return Result{}, false, nil
	}
	return *ds.result, true, nil
}

func (h *Handler) session(devEUI lorawan.EUI64) (*deviceSession, error) {
	h.RLock()
	defer h.RUnlock()

	ds, ok := h.sessions[devEUI]
	if !ok {
		return nil, ErrUnknownSession
	}
	return ds, nil
}

func (h *Handler) setup(ctx context.Context, devEUI lorawan.EUI64, pl *fragmentation.FragSessionSetupReqPayload) error {
	if pl.Control.FragmentationMatrix != 0 {
		return errors.Wrapf(ErrUnsupportedMatrix, "fragmentation matrix %d", pl.Control.FragmentationMatrix)
	}
	if err := h.limits.Validate(pl.NbFrag, pl.FragSize); err != nil {
		return errors.Wrap(err, "validate session parameters error")
	}
	size := uint32(pl.NbFrag) * uint32(pl.FragSize)
	if uint32(pl.Padding) >= size {
		return errors.Wrapf(fragdecoder.ErrInvalidParameters, "padding %d exceeds file size %d", pl.Padding, size)
	}

	// a new setup replaces the current session, its storage is released
	// first as the file storage name is bound to the device
	h.Lock()
	old := h.sessions[devEUI]
	delete(h.sessions, devEUI)
	h.Unlock()
	if old != nil {
		old.Lock()
		old.close()
		old.Unlock()
	}

	id, err := uuid.NewV4()
	if err != nil {
		return errors.Wrap(err, "new uuid error")
	}

	st, err := flash.New(h.storageConfig, devEUI.String(), size)
	if err != nil {
		return errors.Wrap(err, "new storage error")
	}

	ds := deviceSession{
		id:         id,
		devEUI:     devEUI,
		fragIndex:  pl.FragSession.FragIndex,
		padding:    pl.Padding,
		descriptor: pl.Descriptor,
		createdAt:  time.Now(),
		storage:    st,
	}

	ds.decoder, err = fragdecoder.New(pl.NbFrag, pl.FragSize, st, fragdecoder.Observers{
		logObserver{devEUI: devEUI, fragIndex: ds.fragIndex},
		metricsObserver{},
	}, h.limits)
	if err != nil {
		st.Close()
		return errors.Wrap(err, "new fragment decoder error")
	}

	h.Lock()
	h.sessions[devEUI] = &ds
	h.Unlock()

	sessionSetupCounter().Inc()
	log.WithFields(log.Fields{
		"dev_eui":    devEUI,
		"session_id": id,
		"frag_index": ds.fragIndex,
		"nb_frag":    pl.NbFrag,
		"frag_size":  pl.FragSize,
		"padding":    pl.Padding,
		"ctx_id":     ctx.Value(logging.ContextIDKey),
	}).Info("fuota: fragmentation-session setup")

	h.saveStatus(ctx, &ds)
	h.publish(devEUI, EventSetup, SetupEvent{
		SessionID:  id,
		FragIndex:  ds.fragIndex,
		NbFrag:     pl.NbFrag,
		FragSize:   pl.FragSize,
		Padding:    pl.Padding,
		Descriptor: pl.Descriptor,
	})

	return nil
}

func (h *Handler) delete(ctx context.Context, devEUI lorawan.EUI64, pl *fragmentation.FragSessionDeleteReqPayload) error {
	h.Lock()
	ds, ok := h.sessions[devEUI]
	if !ok || ds.fragIndex != pl.Param.FragIndex {
		h.Unlock()
		return errors.Wrapf(ErrUnknownSession, "frag index %d", pl.Param.FragIndex)
	}
	delete(h.sessions, devEUI)
	h.Unlock()

	ds.Lock()
	ds.close()
	ds.Unlock()

	if err := storage.DeleteFragmentSession(ctx, devEUI); err != nil && err != storage.ErrNotConfigured && err != storage.ErrDoesNotExist {
		log.WithError(err).WithField("dev_eui", devEUI).Error("fuota: delete fragmentation-session error")
	}

	log.WithFields(log.Fields{
		"dev_eui":    devEUI,
		"session_id": ds.id,
		"frag_index": ds.fragIndex,
		"ctx_id":     ctx.Value(logging.ContextIDKey),
	}).Info("fuota: fragmentation-session deleted")

	h.publish(devEUI, EventDelete, DeleteEvent{
		SessionID: ds.id,
		FragIndex: ds.fragIndex,
	})

	return nil
}

func (h *Handler) dataFragment(ctx context.Context, devEUI lorawan.EUI64, pl *fragmentation.DataFragmentPayload) error {
	ds, err := h.session(devEUI)
	if err != nil {
		return errors.Wrapf(err, "frag index %d", pl.IndexAndN.FragIndex)
	}

	ds.Lock()
	defer ds.Unlock()

	if ds.decoder == nil || ds.fragIndex != pl.IndexAndN.FragIndex {
		return errors.Wrapf(ErrUnknownSession, "frag index %d", pl.IndexAndN.FragIndex)
	}

	if pl.IndexAndN.N > ds.decoder.Status().FragmentCount {
		fragmentCounter("coded").Inc()
	} else {
		fragmentCounter("uncoded").Inc()
	}

	status, procErr := ds.decoder.Process(pl.IndexAndN.N, pl.Payload)
	if procErr != nil && errors.Cause(procErr) != fragdecoder.ErrStorage {
		return errors.Wrapf(procErr, "process fragment %d error", pl.IndexAndN.N)
	}

	log.WithFields(log.Fields{
		"dev_eui": devEUI,
		"counter": pl.IndexAndN.N,
		"status":  status,
		"ctx_id":  ctx.Value(logging.ContextIDKey),
	}).Debug("fuota: data fragment processed")

	if status.IsTerminal() && ds.result == nil {
		if err := h.complete(ctx, ds, status); err != nil {
			return errors.Wrap(err, "complete fragmentation-session error")
		}
	} else if !status.IsTerminal() {
		h.saveStatus(ctx, ds)
	}

	if procErr != nil {
		return errors.Wrapf(procErr, "process fragment %d error", pl.IndexAndN.N)
	}
	return nil
}

// complete reads back the file of a finished session, stores it in the
// output directory when configured and publishes the result.
func (h *Handler) complete(ctx context.Context, ds *deviceSession, status fragdecoder.Status) error {
	r := Result{
		SessionID: ds.id,
		DevEUI:    ds.devEUI,
		FragIndex: ds.fragIndex,
		Status:    status.String(),
	}

	if status.IsFinished() {
		r.Lost = status.Lost()
		r.Size = ds.decoder.FileSize() - uint32(ds.padding)

		b := make([]byte, int(r.Size))
		if err := ds.storage.Read(0, b); err != nil {
			return errors.Wrap(err, "read file error")
		}
		r.CRC = crc32.ChecksumIEEE(b)

		if h.outputDir != "" {
			if err := os.MkdirAll(h.outputDir, 0755); err != nil {
				return errors.Wrap(err, "create output directory error")
			}
			r.Path = filepath.Join(h.outputDir, fmt.Sprintf("%s.bin", ds.devEUI))
			if err := ioutil.WriteFile(r.Path, b, 0644); err != nil {
				return errors.Wrap(err, "write file error")
			}
		}
	}

	ds.result = &r

	log.WithFields(log.Fields{
		"dev_eui":    ds.devEUI,
		"session_id": ds.id,
		"status":     r.Status,
		"size":       r.Size,
		"crc":        fmt.Sprintf("%08x", r.CRC),
		"path":       r.Path,
		"ctx_id":     ctx.Value(logging.ContextIDKey),
	}).Info("fuota: fragmentation-session completed")

	h.saveStatus(ctx, ds)
	h.publish(ds.devEUI, EventDone, r)

	return nil
}

// saveStatus stores the session status in Redis, when configured.
func (h *Handler) saveStatus(ctx context.Context, ds *deviceSession) {
	st := ds.decoder.Status()
	fs := storage.FragmentSession{
		ID:            ds.id,
		DevEUI:        ds.devEUI,
		FragIndex:     ds.fragIndex,
		FragmentCount: st.FragmentCount,
		FragmentSize:  st.FragmentSize,
		Padding:       ds.padding,
		Descriptor:    ds.descriptor,
		ReceivedCount: st.ReceivedCount,
		LastCounter:   st.LastCounter,
		LostCount:     st.LostCount,
		Status:        st.Result.String(),
		CreatedAt:     ds.createdAt,
		UpdatedAt:     time.Now(),
	}
	if ds.result != nil {
		fs.Size = ds.result.Size
		fs.CRC = ds.result.CRC
	}

	if err := storage.SaveFragmentSession(ctx, fs); err != nil && err != storage.ErrNotConfigured {
		log.WithError(err).WithField("dev_eui", ds.devEUI).Error("fuota: save fragmentation-session error")
	}
}

func (h *Handler) publish(devEUI lorawan.EUI64, event string, v interface{}) {
	if h.publisher == nil {
		return
	}
	if err := h.publisher.PublishEvent(devEUI, event, v); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"dev_eui": devEUI,
			"event":   event,
		}).Error("fuota: publish event error")
	}
}
