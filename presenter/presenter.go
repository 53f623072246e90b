package presenter

import (
	loanhandler "github.com/wambuik/chamaflow/internal/handler/loan"
	memberhandler "github.com/wambuik/chamaflow/internal/handler/member"
	ngumbatohandler "github.com/wambuik/chamaflow/internal/handler/ngumbato"
	privatehandler "github.com/wambuik/chamaflow/internal/handler/private"
	loanrepo "github.com/wambuik/chamaflow/internal/repository/loan"
	memberrepo "github.com/wambuik/chamaflow/internal/repository/member"
	ngumbatorepo "github.com/wambuik/chamaflow/internal/repository/ngumbato"
	"github.com/wambuik/chamaflow/internal/service"
	cloudinarysrv "github.com/wambuik/chamaflow/internal/service/cloudinary"
	loansrv "github.com/wambuik/chamaflow/internal/service/loan"
	membersrv "github.com/wambuik/chamaflow/internal/service/member"
	ngumbatosrv "github.com/wambuik/chamaflow/internal/service/ngumbato"
	privatesrv "github.com/wambuik/chamaflow/internal/service/private"

	"github.com/wambuik/chamaflow/pkg/telemetry"

	"github.com/cloudinary/cloudinary-go/v2"
	"gorm.io/gorm"
)

type Presenter struct {
	PrivatePresenter  *privatehandler.PrivateHandler
	MemberPresenter   *memberhandler.MemberHandler
	LoanPresenter     *loanhandler.LoanHandler
	NgumbatoPresenter *ngumbatohandler.NgumbatoHandler

	// NgumbatoService is exposed for the lateness sweep scheduler.
	NgumbatoService service.NgumbatoServices
}

func NewPresenter(
	db *gorm.DB,
	cld *cloudinary.Cloudinary,
	jwtSecret string,
	tel *telemetry.OpenTelemetry,
) Presenter {
	// Repository
	memberRepositoryMeter := tel.MeterProvider.Meter("member-repository-meter")
	memberRepositoryTracer := tel.TracerProvider.Tracer("member-repository-tracer")
	memberRepository := memberrepo.NewMemberRepository(
		db,
		memberRepositoryMeter,
		memberRepositoryTracer,
		tel.Log,
	)

	loanRepositoryMeter := tel.MeterProvider.Meter("loan-repository-meter")
	loanRepositoryTracer := tel.TracerProvider.Tracer("loan-repository-tracer")
	loanRepository := loanrepo.NewLoanRepository(
		db,
		loanRepositoryMeter,
		loanRepositoryTracer,
		tel.Log,
	)

	ngumbatoRepositoryMeter := tel.MeterProvider.Meter("ngumbato-repository-meter")
	ngumbatoRepositoryTracer := tel.TracerProvider.Tracer("ngumbato-repository-tracer")
	ngumbatoRepository := ngumbatorepo.NewNgumbatoRepository(
		db,
		ngumbatoRepositoryMeter,
		ngumbatoRepositoryTracer,
		tel.Log,
	)

	// Service
	cloudinaryService := cloudinarysrv.NewCloudinaryService(cld)

	privateServiceMeter := tel.MeterProvider.Meter("private-service-meter")
	privateServiceTracer := tel.TracerProvider.Tracer("private-service-trace")
	privateService := privatesrv.NewPrivateService(
		db,
		jwtSecret,
		memberRepository,
		privateServiceMeter,
		privateServiceTracer,
		tel.Log,
	)

	memberServiceMeter := tel.MeterProvider.Meter("member-service-meter")
	memberServiceTracer := tel.TracerProvider.Tracer("member-service-trace")
	memberService := membersrv.NewMemberService(
		db,
		memberRepository,
		loanRepository,
		ngumbatoRepository,
		cloudinaryService,
		memberServiceMeter,
		memberServiceTracer,
		tel.Log,
	)

	loanServiceMeter := tel.MeterProvider.Meter("loan-service-meter")
	loanServiceTracer := tel.TracerProvider.Tracer("loan-service-trace")
	loanService := loansrv.NewLoanService(
		db,
		loanRepository,
		memberRepository,
		loanServiceMeter,
		loanServiceTracer,
		tel.Log,
	)

	ngumbatoServiceMeter := tel.MeterProvider.Meter("ngumbato-service-meter")
	ngumbatoServiceTracer := tel.TracerProvider.Tracer("ngumbato-service-trace")
	ngumbatoService := ngumbatosrv.NewNgumbatoService(
		db,
		ngumbatoRepository,
		memberRepository,
		ngumbatoServiceMeter,
		ngumbatoServiceTracer,
		tel.Log,
	)

	// Handler
	privateHandlerMeter := tel.MeterProvider.Meter("private-handler-meter")
	privateHandlerTracer := tel.TracerProvider.Tracer("private-handler-trace")
	privateHandler := privatehandler.NewPrivateHandler(
		privateService,
		privateHandlerMeter,
		privateHandlerTracer,
		tel.Log,
	)

	memberHandlerMeter := tel.MeterProvider.Meter("member-handler-meter")
	memberHandlerTracer := tel.TracerProvider.Tracer("member-handler-trace")
	memberHandler := memberhandler.NewMemberHandler(
		memberService,
		loanService,
		ngumbatoService,
		memberHandlerMeter,
		memberHandlerTracer,
		tel.Log,
	)

	loanHandlerMeter := tel.MeterProvider.Meter("loan-handler-meter")
	loanHandlerTracer := tel.TracerProvider.Tracer("loan-handler-trace")
	loanHandler := loanhandler.NewLoanHandler(
		loanService,
		loanHandlerMeter,
		loanHandlerTracer,
		tel.Log,
	)

	ngumbatoHandlerMeter := tel.MeterProvider.Meter("ngumbato-handler-meter")
	ngumbatoHandlerTracer := tel.TracerProvider.Tracer("ngumbato-handler-trace")
	ngumbatoHandler := ngumbatohandler.NewNgumbatoHandler(
		ngumbatoService,
		ngumbatoHandlerMeter,
		ngumbatoHandlerTracer,
		tel.Log,
	)

	return Presenter{
		PrivatePresenter:  privateHandler,
		MemberPresenter:   memberHandler,
		LoanPresenter:     loanHandler,
		NgumbatoPresenter: ngumbatoHandler,
		NgumbatoService:   ngumbatoService,
	}
}
