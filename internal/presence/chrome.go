package presence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/khrees2412/jobportal/internal/logger"
)

const cameraStartTimeout = 15 * time.Second

const openCameraJS = `(async () => {
	const stream = await navigator.mediaDevices.getUserMedia({video: {width: 640, height: 480, facingMode: "user"}, audio: false});
	const video = document.createElement("video");
	video.muted = true;
	video.playsInline = true;
	video.srcObject = stream;
	document.body.appendChild(video);
	await video.play();
	window.__presenceStream = stream;
	window.__presenceVideo = video;
	return video.videoWidth > 0;
})()`

const captureFrameJS = `(() => {
	const video = window.__presenceVideo;
	if (!video) { throw new Error("camera not started"); }
	const canvas = document.createElement("canvas");
	canvas.width = video.videoWidth;
	canvas.height = video.videoHeight;
	canvas.getContext("2d").drawImage(video, 0, 0);
	return canvas.toDataURL("image/jpeg", 0.8);
})()`

const releaseCameraJS = `(() => {
	const stream = window.__presenceStream;
	if (stream) { stream.getTracks().forEach(t => t.stop()); }
	window.__presenceStream = null;
	window.__presenceVideo = null;
	return true;
})()`

// ChromeCamera captures webcam frames through a headless Chrome page.
type ChromeCamera struct {
	// FakeDevice substitutes Chrome's synthetic test pattern for a real camera.
	FakeDevice bool
	log        logger.Logger

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

// NewChromeCamera returns an unopened camera.
func NewChromeCamera(log logger.Logger, fakeDevice bool) *ChromeCamera {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &ChromeCamera{FakeDevice: fakeDevice, log: log}
}

func (c *ChromeCamera) browserContext() (context.Context, context.CancelFunc) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("use-fake-ui-for-media-stream", true),
		chromedp.Flag("use-fake-device-for-media-stream", c.FakeDevice),
		chromedp.Flag("disable-background-timer-throttling", true),
		chromedp.Flag("disable-renderer-backgrounding", true),
	)
	// the camera outlives the Open call, so it must not inherit its deadline
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	ctx, cancelCtx := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(format string, v ...interface{}) {
		msg := fmt.Sprintf(format, v...)
		if strings.Contains(msg, "could not unmarshal event") {
			return
		}
		c.log.Debug("chromedp", map[string]interface{}{"msg": msg})
	}))
	return ctx, func() {
		cancelCtx()
		cancelAlloc()
	}
}

func awaitPromise(p *runtime.EvaluateParams) *runtime.EvaluateParams {
	return p.WithAwaitPromise(true)
}

func (c *ChromeCamera) Open(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ctx != nil {
		return nil
	}

	bctx, cancel := c.browserContext()
	// allocate the browser on the long-lived context; a timeout here would
	// tear it down when it expires
	if err := chromedp.Run(bctx); err != nil {
		cancel()
		return fmt.Errorf("launch chrome: %w", err)
	}
	runCtx, cancelRun := context.WithTimeout(bctx, cameraStartTimeout)
	defer cancelRun()
	stopOnParent := context.AfterFunc(ctx, cancelRun)
	defer stopOnParent()

	var ready bool
	err := chromedp.Run(runCtx,
		chromedp.Navigate("about:blank"),
		chromedp.Evaluate(openCameraJS, &ready, awaitPromise),
	)
	if err != nil {
		cancel()
		return fmt.Errorf("start camera: %w", err)
	}
	if !ready {
		cancel()
		return errors.New("start camera: no video frames")
	}
	c.ctx, c.cancel = bctx, cancel
	c.log.Info("chrome camera started", map[string]interface{}{"fake_device": c.FakeDevice})
	return nil
}

func (c *ChromeCamera) Capture(ctx context.Context) (string, error) {
	c.mu.Lock()
	bctx := c.ctx
	c.mu.Unlock()
	if bctx == nil {
		return "", ErrNotInitialized
	}

	runCtx, cancel := context.WithTimeout(bctx, 10*time.Second)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var frame string
	if err := chromedp.Run(runCtx, chromedp.Evaluate(captureFrameJS, &frame)); err != nil {
		return "", fmt.Errorf("capture frame: %w", err)
	}
	if !strings.HasPrefix(frame, "data:image/") {
		return "", errors.New("capture frame: empty image")
	}
	return frame, nil
}

// Close stops every media track and shuts the browser down.
func (c *ChromeCamera) Close() error {
	c.mu.Lock()
	bctx, cancel := c.ctx, c.cancel
	c.ctx, c.cancel = nil, nil
	c.mu.Unlock()
	if bctx == nil {
		return nil
	}
	defer cancel()

	runCtx, cancelRun := context.WithTimeout(bctx, 5*time.Second)
	defer cancelRun()
	var released bool
	if err := chromedp.Run(runCtx, chromedp.Evaluate(releaseCameraJS, &released)); err != nil {
		return fmt.Errorf("release camera tracks: %w", err)
	}
	c.log.Info("chrome camera released", nil)
	return nil
}
